package sync

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"strings"
)

// Server streams round events to TCP clients as JSON lines. A client may
// send "round <id>" to follow one round or "all" to follow every round.
// Other input is ignored.
type Server struct {
	Addr string
	Hub  *Hub
}

func NewServer(addr string, hub *Hub) *Server {
	return &Server{Addr: addr, Hub: hub}
}

// Run listens on s.Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	log.Printf("[tcp-sync] listening on %s", ln.Addr())
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("[tcp-sync] accept: %v", err)
			continue
		}
		go s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	sub := tcpSubscriber(conn)
	if err := s.Hub.subscribe(sub); err != nil {
		_ = conn.Close()
		return
	}
	log.Printf("[tcp-sync] %s subscribed", conn.RemoteAddr())
	defer func() {
		s.Hub.unsubscribe(sub)
		log.Printf("[tcp-sync] %s gone", conn.RemoteAddr())
	}()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		cmd, arg, _ := strings.Cut(strings.TrimSpace(sc.Text()), " ")
		var err error
		switch strings.ToLower(cmd) {
		case "round":
			err = s.Hub.follow(sub, strings.TrimSpace(arg))
		case "all":
			err = s.Hub.follow(sub, "")
		}
		if err != nil {
			return
		}
	}
}
