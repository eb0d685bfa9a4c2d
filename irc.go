package wurstminebot

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"gopkg.in/tomb.v2"
)

// Chat is the set of operations the bot performs on the chat network.
type Chat interface {
	// Say sends text to a channel or nick, one message per line.
	Say(target, text string) error
	SetTopic(channel, topic string) error
	Join(channel string) error

	// Raw sends a protocol line verbatim.
	Raw(line string) error

	// Quit disconnects with the given message and stops the client.
	Quit(message string) error
}

// NetworkTimeout's value is used as a timeout in a number of network-related activities.
var NetworkTimeout = 15 * time.Second

// How long the connection may stay idle before the server is pinged.
var pingDelay = time.Minute

type ircInfo struct {
	Host        string
	TLS         bool
	TLSInsecure bool
	Nick        string
	Password    string
	NickServ    string
	Channels    []string
}

// ircClient is a connection to one IRC server that implements Chat.
type ircClient struct {
	info ircInfo
	conn net.Conn
	tomb tomb.Tomb
	ircR *ircReader
	ircW *ircWriter

	activeNick     string
	activeChannels []string

	stopAuth chan bool

	Incoming chan *Message
	Outgoing chan *Message
}

func startIrcClient(info *ircInfo, incoming chan *Message) *ircClient {
	c := &ircClient{
		info:     *info,
		stopAuth: make(chan bool),
		Incoming: incoming,
		Outgoing: make(chan *Message),
	}
	c.tomb.Go(c.loop)
	return c
}

func (c *ircClient) Dying() <-chan struct{} {
	return c.tomb.Dying()
}

func (c *ircClient) Err() error {
	return c.tomb.Err()
}

func (c *ircClient) send(msg *Message) error {
	select {
	case c.Outgoing <- msg:
		return nil
	case <-c.tomb.Dying():
		return fmt.Errorf("cannot send to IRC server: connection terminated")
	}
}

func (c *ircClient) Say(target, text string) error {
	for _, line := range strings.Split(text, "\n") {
		msg := &Message{Command: cmdPrivMsg, Text: line}
		if isChannel(target) {
			msg.Channel = target
		} else {
			msg.Nick = target
		}
		if err := c.send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *ircClient) SetTopic(channel, topic string) error {
	return c.send(&Message{Command: cmdTopic, Params: []string{channel}, Text: topic})
}

func (c *ircClient) Join(channel string) error {
	return c.send(&Message{Command: cmdJoin, Params: []string{channel}})
}

func (c *ircClient) Raw(line string) error {
	return c.send(ParseOutgoing(line))
}

// Quit disconnects gracefully and waits for the client to terminate.
func (c *ircClient) Quit(message string) error {
	timeout := time.After(NetworkTimeout)
	select {
	case c.Outgoing <- &Message{Command: cmdQuit, Text: message}:
		select {
		case <-c.tomb.Dying():
		case <-timeout:
		}
	case c.stopAuth <- true:
	case <-c.tomb.Dying():
	case <-timeout:
	}
	c.tomb.Kill(errStop)
	err := c.tomb.Wait()
	if err != errStop {
		return err
	}
	return nil
}

func (c *ircClient) Stop() error {
	return c.Quit("bye")
}

func (c *ircClient) loop() error {
	defer func() { logf("[irc] Client loop terminated (%v)", c.tomb.Err()) }()
	defer c.die()

	if err := c.connect(); err != nil {
		logf("[irc] Cannot connect: %v", err)
		return fmt.Errorf("cannot connect to IRC server: %v", err)
	}
	steps := []struct {
		what string
		run  func() error
	}{
		{"authenticate on", c.auth},
		{"talk to", c.forward},
	}
	for _, step := range steps {
		err := step.run()
		if err == errStop {
			return err
		}
		if err != nil {
			logf("[irc] Cannot %s IRC server: %v", step.what, err)
			return fmt.Errorf("cannot %s IRC server: %v", step.what, err)
		}
	}
	return nil
}

// die releases the connection. The writer goes first so pending lines
// are flushed, and the reader is only waited for after the connection is
// closed, since it is usually blocked reading from it.
func (c *ircClient) die() {
	debugf("[irc] Releasing connection resources")
	if c.ircW != nil {
		if err := c.ircW.Stop(); err != nil {
			logf("[irc] Writer failure: %v", err)
		}
	}
	if c.ircR != nil {
		c.ircR.tomb.Kill(errStop)
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			logf("[irc] Cannot close connection: %v", err)
		}
		c.conn = nil
	}
	if c.ircR != nil {
		if err := c.ircR.Stop(); err != nil {
			logf("[irc] Reader failure: %v", err)
		}
	}
}

func (c *ircClient) connect() error {
	logf("[irc] Connecting to %s as %s (tls=%v)", c.info.Host, c.info.Nick, c.info.TLS)
	dialer := &net.Dialer{Timeout: NetworkTimeout}
	var conn net.Conn
	var err error
	if c.info.TLS {
		conn, err = tls.DialWithDialer(dialer, "tcp", c.info.Host, &tls.Config{InsecureSkipVerify: c.info.TLSInsecure})
	} else {
		conn, err = dialer.Dial("tcp", c.info.Host)
	}
	if err != nil {
		return err
	}
	logf("[irc] Connected to %s", c.info.Host)
	c.conn = conn
	c.ircR = startIrcReader(conn, c.info.Nick)
	c.ircW = startIrcWriter(conn)
	return nil
}

// auth registers the connection and waits for the welcome, trying
// alternative nicks while the wanted one is taken.
func (c *ircClient) auth() error {
	var lines []string
	if c.info.Password != "" {
		lines = append(lines, "PASS "+c.info.Password)
	}
	lines = append(lines, "NICK "+c.info.Nick, "USER "+c.info.Nick+" 0 0 :wurstminebot")
	for _, line := range lines {
		if err := c.ircW.Sendf("%s", line); err != nil {
			return err
		}
	}

	nick := c.info.Nick
	for {
		msg, err := c.next()
		if err != nil {
			return err
		}
		switch msg.Command {
		case cmdNickInUse:
			logf("[irc] Nick %s is taken, trying %s_", nick, nick)
			nick += "_"
			c.ircR.SetNick(nick)
			err = c.ircW.Sendf("NICK %s", nick)
		case cmdPing:
			err = c.ircW.Sendf("PONG :%s", msg.Text)
		case cmdWelcome:
			c.activeNick = msg.AsNick
			logf("[irc] Registered as %s", c.activeNick)
			if c.info.NickServ != "" {
				return c.ircW.Sendf("PRIVMSG NickServ :IDENTIFY %s", c.info.NickServ)
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// next returns the next line read during registration.
func (c *ircClient) next() (*Message, error) {
	select {
	case msg := <-c.ircR.Incoming:
		return msg, nil
	case <-c.tomb.Dying():
	case <-c.stopAuth:
	case <-c.ircR.Dying():
		return nil, c.ircR.Err()
	case <-c.ircW.Dying():
		return nil, c.ircW.Err()
	}
	return nil, errStop
}

func (c *ircClient) forward() error {
	// Join initial channels before forwarding any outgoing messages.
	if len(c.info.Channels) > 0 {
		// TODO Handle channel keys.
		err := c.ircW.Sendf("JOIN %s", strings.Join(c.info.Channels, ","))
		if err != nil {
			return err
		}
	}

	var inMsg, outMsg *Message
	var inRecv, outRecv <-chan *Message
	var inSend, outSend chan<- *Message

	inRecv = c.ircR.Incoming
	outRecv = c.Outgoing

	quitting := false
	for {
		select {
		case inMsg = <-inRecv:
			if c.handleMessage(inMsg) {
				inMsg = nil
				continue
			}
			inRecv = nil
			inSend = c.Incoming

		case inSend <- inMsg:
			inMsg = nil
			inRecv = c.ircR.Incoming
			inSend = nil

		case outMsg = <-outRecv:
			if outMsg.Command == cmdQuit {
				quitting = true
			}
			outRecv = nil
			outSend = c.ircW.Outgoing

		case outSend <- outMsg:
			outMsg = nil
			outRecv = c.Outgoing
			outSend = nil

		case <-c.tomb.Dying():
			return errStop
		case <-c.ircR.Dying():
			if quitting {
				return errStop
			}
			return c.ircR.Err()
		case <-c.ircW.Dying():
			if quitting {
				return errStop
			}
			return c.ircW.Err()
		}
	}
}

// handleMessage keeps track of the connection state and reports whether
// msg is protocol chatter that must not be delivered.
func (c *ircClient) handleMessage(msg *Message) (skip bool) {
	switch msg.Command {
	case cmdNick:
		c.activeNick = msg.AsNick
	case cmdPing:
		c.ircW.Sendf("PONG :%s", msg.Text)
		return true
	case cmdPong:
		return true
	case cmdJoin:
		if msg.Nick == c.activeNick {
			name := channelParam(msg)
			c.activeChannels = append(c.activeChannels, name)
			logf("[irc] Joined channel %q.", name)
		}
	case cmdPart:
		if msg.Nick == c.activeNick {
			name := channelParam(msg)
			for i, iname := range c.activeChannels {
				if iname == name {
					copy(c.activeChannels[i:], c.activeChannels[i+1:])
					c.activeChannels = c.activeChannels[:len(c.activeChannels)-1]
					break
				}
			}
			logf("[irc] Left channel %q.", name)
		}
	}
	return false
}

// channelParam returns the channel of a JOIN or PART, which servers
// send either as a parameter or as the trailing text.
func channelParam(msg *Message) string {
	if len(msg.Params) > 0 {
		return msg.Params[0]
	}
	return msg.Text
}

var errStop = fmt.Errorf("stop requested")

// ircLoop is the lifecycle shared by the connection reader and writer.
type ircLoop struct {
	name string
	tomb tomb.Tomb
}

func (l *ircLoop) Dying() <-chan struct{} { return l.tomb.Dying() }
func (l *ircLoop) Err() error             { return l.tomb.Err() }

func (l *ircLoop) Stop() error {
	debugf("[irc] Stopping %s", l.name)
	l.tomb.Kill(errStop)
	if err := l.tomb.Wait(); err != errStop {
		return err
	}
	return nil
}

// ircWriter sends queued messages to the server, pinging it when the
// connection would otherwise stay quiet.
type ircWriter struct {
	ircLoop
	conn net.Conn
	buf  *bufio.Writer

	Outgoing chan *Message
}

func startIrcWriter(conn net.Conn) *ircWriter {
	w := &ircWriter{
		ircLoop:  ircLoop{name: "writer"},
		conn:     conn,
		buf:      bufio.NewWriter(conn),
		Outgoing: make(chan *Message, 1),
	}
	w.tomb.Go(w.loop)
	return w
}

func (w *ircWriter) Send(msg *Message) error {
	select {
	case w.Outgoing <- msg:
		return nil
	case <-w.tomb.Dying():
		return w.Err()
	}
}

func (w *ircWriter) Sendf(format string, args ...interface{}) error {
	return w.Send(ParseOutgoing(fmt.Sprintf(format, args...)))
}

func (w *ircWriter) loop() error {
	defer func() { debugf("[irc] Writer is dead (%v)", w.tomb.Err()) }()
	pinger := time.NewTicker(pingDelay)
	defer pinger.Stop()
	for {
		var line string
		select {
		case msg := <-w.Outgoing:
			line = msg.String()
			debugf("[irc] Sending: %s", line)
		case t := <-pinger.C:
			line = "PING :" + strconv.FormatInt(t.Unix(), 10)
		case <-w.tomb.Dying():
			return errStop
		}
		w.conn.SetWriteDeadline(time.Now().Add(NetworkTimeout))
		w.buf.WriteString(line)
		w.buf.WriteString("\r\n")
		if err := w.buf.Flush(); err != nil {
			return err
		}
	}
}

// maxLineSize bounds incoming lines. The protocol limit is 512 bytes,
// plus up to 8191 for message tags.
const maxLineSize = 8192 + 512

// ircReader parses lines from the server into the Incoming channel,
// keeping track of the nick the bot is known by.
type ircReader struct {
	ircLoop
	conn       net.Conn
	scanner    *bufio.Scanner
	nickChange chan string
	activeNick string

	Incoming chan *Message
}

func startIrcReader(conn net.Conn, nick string) *ircReader {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 512), maxLineSize)
	r := &ircReader{
		ircLoop:    ircLoop{name: "reader"},
		conn:       conn,
		scanner:    scanner,
		nickChange: make(chan string, 1),
		activeNick: nick,
		Incoming:   make(chan *Message, 1),
	}
	r.tomb.Go(r.loop)
	return r
}

// SetNick informs the reader of a nick requested before the welcome.
func (r *ircReader) SetNick(nick string) {
	select {
	case <-r.nickChange:
	default:
	}
	r.nickChange <- nick
}

func (r *ircReader) loop() error {
	defer func() { debugf("[irc] Reader is dead (%v)", r.tomb.Err()) }()
	for r.tomb.Alive() {
		r.conn.SetReadDeadline(time.Now().Add(pingDelay + NetworkTimeout))
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return err
			}
			return io.EOF
		}
		line := strings.TrimSuffix(r.scanner.Text(), "\r")
		select {
		case nick := <-r.nickChange:
			r.activeNick = nick
		default:
		}
		msg := ParseIncoming(r.activeNick, "!", line)
		if msg.Command != cmdPong {
			debugf("[irc] Received: %s", line)
		}
		r.trackNick(msg)
		select {
		case r.Incoming <- msg:
		case <-r.tomb.Dying():
		}
	}
	return nil
}

func (r *ircReader) trackNick(msg *Message) {
	var nick string
	switch {
	case msg.Command == cmdNick && msg.Nick == r.activeNick:
		nick = msg.Text
		if nick == "" && len(msg.Params) > 0 {
			nick = msg.Params[0]
		}
	case msg.Command == cmdWelcome && len(msg.Params) > 0:
		nick = msg.Params[0]
	default:
		return
	}
	r.activeNick = nick
	msg.AsNick = nick
	logf("[irc] Known as %s", nick)
}
