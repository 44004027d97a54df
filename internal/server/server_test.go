package server

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tyrowin/linechat/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

const (
	localAddr = "127.0.0.1"
	reps      = 16
)

func newTestServer(t *testing.T, cfg *Config) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	return New(*cfg, zaptest.NewLogger(t))
}

func TestLifecycleRequiresStart(t *testing.T) {
	srv := newTestServer(t, nil)

	assert.Equal(t, StatusNotStarted, srv.Status())
	assert.ErrorIs(t, srv.Stop(), ErrNotStarted)
	assert.ErrorIs(t, srv.Join(), ErrNotStarted)
	assert.Nil(t, srv.Addr())
}

func TestStartAtMostOnce(t *testing.T) {
	defer goleak.VerifyNone(t)
	srv := newTestServer(t, nil)

	require.NoError(t, srv.Start(localAddr, 0))
	assert.Equal(t, StatusStarted, srv.Status())
	assert.ErrorIs(t, srv.Start(localAddr, 0), ErrAlreadyStarted)

	require.NoError(t, srv.Stop())
	require.NoError(t, srv.Stop())
	require.NoError(t, srv.Join())
	assert.Equal(t, StatusEnded, srv.Status())
	assert.ErrorIs(t, srv.Start(localAddr, 0), ErrAlreadyStarted)
}

func TestStartFailureEndsServer(t *testing.T) {
	busy, err := net.Listen("tcp", net.JoinHostPort(localAddr, "0"))
	require.NoError(t, err)
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	srv := newTestServer(t, nil)
	err = srv.Start(localAddr, port)

	require.Error(t, err)
	assert.Equal(t, StatusEnded, srv.Status())
	assert.NoError(t, srv.Stop())
	assert.NoError(t, srv.Join())
}

func TestShutdownHonoursContext(t *testing.T) {
	srv := newTestServer(t, nil)
	require.NoError(t, srv.Start(localAddr, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, srv.Shutdown(ctx))
	assert.Equal(t, StatusEnded, srv.Status())
}

// ServerSuite drives a live server over TCP.
type ServerSuite struct {
	suite.Suite
	srv     *Server
	clients []*testhelpers.LineClient
}

func TestServerSuite(t *testing.T) {
	defer goleak.VerifyNone(t)
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.startServer(NewConfig())
}

func (s *ServerSuite) TearDownTest() {
	if s.srv.Status() != StatusEnded {
		s.Require().NoError(s.srv.Stop())
		s.Require().NoError(s.srv.Join())
	}
	for _, c := range s.clients {
		_ = c.Close()
	}
	s.clients = nil
}

func (s *ServerSuite) startServer(cfg *Config) {
	s.srv = New(*cfg, zaptest.NewLogger(s.T()))
	s.Require().NoError(s.srv.Start(localAddr, 0))
}

func (s *ServerSuite) restartServer(cfg *Config) {
	s.Require().NoError(s.srv.Stop())
	s.Require().NoError(s.srv.Join())
	s.startServer(cfg)
}

func (s *ServerSuite) dial() *testhelpers.LineClient {
	c, err := testhelpers.Dial(s.srv.Addr().String())
	s.Require().NoError(err)
	s.clients = append(s.clients, c)
	return c
}

// dialInRoom connects a client and enters room; the round trip also fixes
// the accept order, and with it the client name.
func (s *ServerSuite) dialInRoom(room string) *testhelpers.LineClient {
	c := s.dial()
	s.Require().NoError(c.EnterRoom(room))
	return c
}

func (s *ServerSuite) readLine(c *testhelpers.LineClient) string {
	line, err := c.ReadLine()
	s.Require().NoError(err)
	return line
}

// sync makes a round trip so every line sent before it has been handled.
func (s *ServerSuite) sync(c *testhelpers.LineClient) {
	s.Require().NoError(c.WriteLine("/sync"))
	s.Require().Equal("[Error: Unknown command]", s.readLine(c))
}

func (s *ServerSuite) TestTwoClientsExchangeMessages() {
	client0 := s.dialInRoom("room")
	client1 := s.dialInRoom("room")

	for i := 0; i < reps; i++ {
		s.Require().NoError(client0.WriteLine(fmt.Sprintf("Hello from client0 %d", i)))
		s.Require().NoError(client1.WriteLine(fmt.Sprintf("Hello from client1 %d", i)))
		s.Equal(fmt.Sprintf("[room]client-1 says 'Hello from client1 %d'", i), s.readLine(client0))
		s.Equal(fmt.Sprintf("[room]client-0 says 'Hello from client0 %d'", i), s.readLine(client1))
	}

	s.Require().NoError(client0.LeaveRoom())
	s.Require().NoError(client1.LeaveRoom())
	s.Require().NoError(client0.Exit())

	s.Require().NoError(s.srv.Stop())
	s.Require().NoError(s.srv.Join())

	s.Equal("[Error: Server is exiting]", s.readLine(client1))
	s.NoError(client1.ExpectClosed())
	s.NoError(client0.ExpectClosed())
	s.Equal(StatusEnded, s.srv.Status())
}

func (s *ServerSuite) TestNoEcho() {
	sender := s.dialInRoom("room")
	receiver := s.dialInRoom("room")

	s.Require().NoError(sender.WriteLine("only for others"))
	s.Equal("[room]client-0 says 'only for others'", s.readLine(receiver))

	// the next line the sender sees is the reply to its own command
	s.Require().NoError(sender.LeaveRoom())
}

func (s *ServerSuite) TestNothingDeliveredAfterLeave() {
	stayer := s.dialInRoom("room")
	leaver := s.dialInRoom("room")

	s.Require().NoError(leaver.LeaveRoom())
	s.Require().NoError(stayer.WriteLine("you should not see this"))
	s.sync(stayer)

	s.Require().NoError(leaver.WriteLine("/leave"))
	s.Equal("[Error: There is no room to leave from]", s.readLine(leaver))
}

func (s *ServerSuite) TestRepeatedLeaveWithoutRoom() {
	c := s.dial()
	for i := 0; i < 3; i++ {
		s.Require().NoError(c.WriteLine("/leave"))
		s.Equal("[Error: There is no room to leave from]", s.readLine(c))
	}
}

func (s *ServerSuite) TestPostWithoutRoom() {
	c := s.dial()
	s.Require().NoError(c.WriteLine("anyone?"))
	s.Equal("[Error: Need to be inside a room to post a message]", s.readLine(c))
}

func (s *ServerSuite) TestEnterAcknowledgedBeforeBroadcasts() {
	chatter := s.dialInRoom("room")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if err := chatter.WriteLine(fmt.Sprintf("chatter %d", i)); err != nil {
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	for i := 0; i < 5; i++ {
		joiner := s.dial()
		s.Require().NoError(joiner.WriteLine("/enter room"))
		s.Equal("[OK]", s.readLine(joiner))
	}
}

func (s *ServerSuite) TestManyClientsFanOut() {
	const n = 8
	clients := make([]*testhelpers.LineClient, n)
	for i := range clients {
		clients[i] = s.dialInRoom("crowd")
	}

	for i, c := range clients {
		s.Require().NoError(c.WriteLine(fmt.Sprintf("msg %d", i)))
	}

	for i, c := range clients {
		seen := make(map[string]bool)
		for j := 0; j < n-1; j++ {
			seen[s.readLine(c)] = true
		}
		for j := 0; j < n; j++ {
			want := fmt.Sprintf("[crowd]client-%d says 'msg %d'", j, j)
			s.Equal(j != i, seen[want], "client-%d / %s", i, want)
		}
	}
}

func (s *ServerSuite) TestRoomsAreIsolated() {
	red := s.dialInRoom("red")
	blue := s.dialInRoom("blue")

	s.Require().NoError(red.WriteLine("red only"))
	s.sync(red)

	s.sync(blue)
	s.Equal(2, s.srv.Stats().Rooms)
}

func (s *ServerSuite) TestExitedClientsLeaveLiveSet() {
	c := s.dial()
	s.Require().NoError(c.Exit())
	s.NoError(c.ExpectClosed())

	s.Eventually(func() bool { return s.srv.Stats().Clients == 0 }, 2*time.Second, 10*time.Millisecond)
}

func (s *ServerSuite) TestDisconnectLeavesRoom() {
	stayer := s.dialInRoom("room")
	quitter := s.dialInRoom("room")
	s.Require().NoError(quitter.Close())

	s.Eventually(func() bool { return s.srv.Stats().Clients == 1 }, 2*time.Second, 10*time.Millisecond)
	s.Require().NoError(stayer.WriteLine("alone now"))
	s.sync(stayer)
}

func (s *ServerSuite) TestMaxClients() {
	cfg := NewConfig()
	cfg.MaxClients = 1
	s.restartServer(cfg)

	first := s.dialInRoom("room")
	second := s.dial()

	s.Equal("[Error: Server is full]", s.readLine(second))
	s.NoError(second.ExpectClosed())
	s.NoError(first.LeaveRoom())
}

func (s *ServerSuite) TestLongLineClosesConnection() {
	cfg := NewConfig()
	cfg.MaxLineLength = 16
	s.restartServer(cfg)

	c := s.dial()
	s.Require().NoError(c.WriteLine(strings.Repeat("x", 256)))
	s.NoError(c.ExpectClosed())
}

func (s *ServerSuite) TestStopWithIdleClients() {
	idle := []*testhelpers.LineClient{s.dial(), s.dialInRoom("room"), s.dialInRoom("room")}

	s.Require().NoError(s.srv.Stop())
	s.Require().NoError(s.srv.Join())

	for _, c := range idle {
		s.Equal("[Error: Server is exiting]", s.readLine(c))
		s.NoError(c.ExpectClosed())
	}
	s.Equal(0, s.srv.Stats().Clients)
}

func (s *ServerSuite) TestConnectAfterStopIsRefused() {
	addr := s.srv.Addr().String()
	s.Require().NoError(s.srv.Stop())
	s.Require().NoError(s.srv.Join())

	_, err := testhelpers.Dial(addr)
	s.Error(err)
}
