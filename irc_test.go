package wurstminebot

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	. "gopkg.in/check.v1"
	"gopkg.in/tomb.v2"
)

// ircServerSuite listens on a local port and hands each accepted
// connection to a fakeIRCServer that the tests drive line by line.
type ircServerSuite struct {
	Addr    *net.TCPAddr
	tomb    tomb.Tomb
	l       *net.TCPListener
	m       sync.Mutex
	active  bool
	servers []*fakeIRCServer
}

func (s *ircServerSuite) SetUpSuite(c *C) {
	addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
	c.Assert(err, IsNil)
	s.l, err = net.ListenTCP("tcp", addr)
	c.Assert(err, IsNil)
	s.Addr = s.l.Addr().(*net.TCPAddr)
	s.tomb.Go(s.accept)
}

func (s *ircServerSuite) TearDownSuite(c *C) {
	s.tomb.Kill(nil)
	s.l.Close()
}

func (s *ircServerSuite) SetUpTest(c *C) {
	c.Assert(s.tomb.Err(), Equals, tomb.ErrStillAlive)
	s.m.Lock()
	s.active = true
	s.m.Unlock()
}

func (s *ircServerSuite) TearDownTest(c *C) {
	s.m.Lock()
	s.active = false
	for _, server := range s.servers {
		server.Close()
	}
	s.servers = nil
	s.m.Unlock()
	c.Assert(s.tomb.Err(), Equals, tomb.ErrStillAlive)
}

func (s *ircServerSuite) accept() error {
	for s.tomb.Alive() {
		conn, err := s.l.Accept()
		if err != nil {
			return err
		}
		s.m.Lock()
		if !s.active {
			panic("IRC test server got a connection without active tests")
		}
		s.servers = append(s.servers, newFakeIRCServer(conn))
		s.m.Unlock()
	}
	return nil
}

// Server waits for the n-th connection of the current test.
func (s *ircServerSuite) Server(n int) *fakeIRCServer {
	for i := 0; i < 500; i++ {
		s.m.Lock()
		if len(s.servers) > n {
			server := s.servers[n]
			s.m.Unlock()
			return server
		}
		s.m.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	panic(fmt.Sprintf("timeout waiting for IRC connection %d", n))
}

type fakeIRCServer struct {
	conn  net.Conn
	tomb  tomb.Tomb
	lines chan string
}

func newFakeIRCServer(conn net.Conn) *fakeIRCServer {
	server := &fakeIRCServer{conn: conn, lines: make(chan string, 64)}
	server.tomb.Go(server.read)
	return server
}

func (f *fakeIRCServer) read() error {
	scanner := bufio.NewScanner(f.conn)
	for scanner.Scan() && f.tomb.Alive() {
		select {
		case f.lines <- scanner.Text():
		default:
			panic("too many lines received without being read by the test")
		}
	}
	return scanner.Err()
}

func (f *fakeIRCServer) Close() error {
	f.tomb.Kill(nil)
	f.conn.Close()
	return f.tomb.Wait()
}

// ReadLine returns the next line sent by the client, skipping keepalive
// pings.
func (f *fakeIRCServer) ReadLine() string {
	for {
		select {
		case line := <-f.lines:
			if len(line) > 6 && line[:6] == "PING :" && line[6] >= '0' && line[6] <= '9' {
				continue
			}
			return line
		case <-f.tomb.Dead():
			select {
			case line := <-f.lines:
				return line
			default:
			}
			return fmt.Sprintf("<closed: %v>", f.tomb.Err())
		case <-time.After(5 * time.Second):
			return "<timeout>"
		}
	}
}

func (f *fakeIRCServer) SendLine(line string) {
	if _, err := f.conn.Write([]byte(line + "\r\n")); err != nil {
		panic(fmt.Sprintf("cannot send line to IRC client: %v", err))
	}
}

type IRCSuite struct {
	ircServerSuite

	client   *ircClient
	server   *fakeIRCServer
	incoming chan *Message
}

var _ = Suite(&IRCSuite{})

func (s *IRCSuite) SetUpTest(c *C) {
	s.ircServerSuite.SetUpTest(c)
	SetLogger(c)
	SetDebug(true)

	s.incoming = make(chan *Message, 16)
	s.client = startIrcClient(&ircInfo{
		Host:     s.Addr.String(),
		Nick:     "wurstminebot",
		Password: "password",
		NickServ: "secret",
	}, s.incoming)
	s.server = s.Server(0)
	s.ReadLine(c, "PASS password")
	s.ReadLine(c, "NICK wurstminebot")
	s.ReadLine(c, "USER wurstminebot 0 0 :wurstminebot")
}

func (s *IRCSuite) TearDownTest(c *C) {
	s.server.Close()
	s.client.Stop()
	SetDebug(false)
	SetLogger(nil)
	s.ircServerSuite.TearDownTest(c)
}

func (s *IRCSuite) ReadLine(c *C, line string) {
	c.Assert(s.server.ReadLine(), Equals, line)
}

func (s *IRCSuite) SendWelcome(c *C) {
	s.server.SendLine(":n.net 001 wurstminebot :Welcome!")
	s.ReadLine(c, "PRIVMSG NickServ :IDENTIFY secret")
}

func (s *IRCSuite) Roundtrip(c *C) {
	s.server.SendLine("PING :roundtrip")
	s.ReadLine(c, "PONG :roundtrip")
}

func (s *IRCSuite) Incoming(c *C) *Message {
	select {
	case msg := <-s.incoming:
		return msg
	case <-time.After(3 * time.Second):
		c.Fatalf("timeout waiting for incoming message")
	}
	return nil
}

func (s *IRCSuite) TestNickInUse(c *C) {
	s.server.SendLine(":n.net 433 * wurstminebot :Nickname is already in use.")
	s.ReadLine(c, "NICK wurstminebot_")
	s.server.SendLine(":n.net 001 wurstminebot_ :Welcome!")
	s.ReadLine(c, "PRIVMSG NickServ :IDENTIFY secret")

	s.server.SendLine(":nick!~user@host PRIVMSG wurstminebot_ :hi")
	msg := s.Incoming(c)
	c.Assert(msg.AsNick, Equals, "wurstminebot_")
	c.Assert(msg.BotText, Equals, "hi")
}

func (s *IRCSuite) TestPingPong(c *C) {
	s.server.SendLine("PING :foo")
	s.ReadLine(c, "PONG :foo")
}

func (s *IRCSuite) TestPingPongAfterWelcome(c *C) {
	s.SendWelcome(c)
	s.server.SendLine("PING :foo")
	s.ReadLine(c, "PONG :foo")
}

func (s *IRCSuite) TestQuitBeforeWelcome(c *C) {
	c.Assert(s.client.Quit("bye"), IsNil)
	s.ReadLine(c, "<closed: <nil>>")
}

func (s *IRCSuite) TestQuit(c *C) {
	s.SendWelcome(c)
	s.Roundtrip(c)
	stopped := make(chan error)
	go func() {
		stopped <- s.client.Quit("brb")
	}()
	s.ReadLine(c, "QUIT :brb")
	s.server.Close()
	c.Assert(<-stopped, IsNil)
}

func (s *IRCSuite) TestIncoming(c *C) {
	s.SendWelcome(c)
	s.server.SendLine(":nick!~user@host PRIVMSG #wurstmineberg :wurstminebot: status")
	msg := s.Incoming(c)
	msg.Time = time.Time{}
	c.Assert(*msg, DeepEquals, Message{
		Channel: "#wurstmineberg",
		Nick:    "nick",
		User:    "~user",
		Host:    "host",
		Command: "PRIVMSG",
		Text:    "wurstminebot: status",
		BotText: "status",
		Bang:    "!",
		AsNick:  "wurstminebot",
	})
}

func (s *IRCSuite) TestIncomingSkipsPong(c *C) {
	s.SendWelcome(c)
	s.server.SendLine(":n.net PONG n.net :123")
	s.server.SendLine(":n.net 376 wurstminebot :End of /MOTD command.")
	c.Assert(s.Incoming(c).Command, Equals, cmdEndOfMOTD)
}

func (s *IRCSuite) TestOutgoing(c *C) {
	s.SendWelcome(c)
	c.Assert(s.client.Say("#wurstmineberg", "one\ntwo"), IsNil)
	s.ReadLine(c, "PRIVMSG #wurstmineberg :one")
	s.ReadLine(c, "PRIVMSG #wurstmineberg :two")
	c.Assert(s.client.Say("nick", "hi"), IsNil)
	s.ReadLine(c, "PRIVMSG nick :hi")
	c.Assert(s.client.SetTopic("#wurstmineberg", "Currently online: Alice"), IsNil)
	s.ReadLine(c, "TOPIC #wurstmineberg :Currently online: Alice")
	c.Assert(s.client.Join("#dev"), IsNil)
	s.ReadLine(c, "JOIN #dev")
	c.Assert(s.client.Raw("MODE #dev +o nick"), IsNil)
	s.ReadLine(c, "MODE #dev +o nick")
}
