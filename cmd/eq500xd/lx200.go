package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ListenLX200 accepts TCP connections speaking the classic '#'-terminated
// telescope command text, so planetarium programs can drive the mount
// without knowing about its centering loop. A go-to on this surface runs
// the precise convergence procedure, not the mount's native slew.
func (s *Server) ListenLX200(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		log.Infoln("shutdown; closing lx200 socket")
		ln.Close()
	}()
	go func() {
		for ctx.Err() == nil {
			conn, err := ln.Accept()
			if err != nil {
				log.Errorf("failed to accept: %v", err)
				continue
			}
			go s.handleLX200(conn)
		}
	}()
	return nil
}

// scanCommands splits the stream at '#' terminators.
func scanCommands(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.IndexByte(data, '#'); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (s *Server) handleLX200(conn net.Conn) {
	defer conn.Close()
	log.Infof("accepted lx200 connection from %v", conn.RemoteAddr())

	// Slew targets arrive in two halves and are held here until :MS# or
	// :CM# consumes them.
	var (
		targetRA, targetDEC float64
		haveRA, haveDEC     bool
	)

	scanner := bufio.NewScanner(conn)
	scanner.Split(scanCommands)
	for scanner.Scan() {
		// Some clients lead with an ACK byte or stray whitespace.
		cmd := strings.TrimLeft(scanner.Text(), "\x06\r\n ")
		if cmd == "" {
			continue
		}
		log.Debugf("%v command <%s#>", conn.RemoteAddr(), cmd)
		switch {
		case cmd == ":GR":
			s.statusMu.RLock()
			ra := s.status.RA
			s.statusMu.RUnlock()
			fmt.Fprintf(conn, "%s#", formatHours(ra))
		case cmd == ":GD":
			s.statusMu.RLock()
			dec := s.status.DEC
			s.statusMu.RUnlock()
			fmt.Fprintf(conn, "%s#", formatDegrees(dec))
		case strings.HasPrefix(cmd, ":Sr"):
			ra, err := parseSexagesimal(cmd[3:])
			if err != nil || ra < 0 || ra >= 24 {
				io.WriteString(conn, "0")
				break
			}
			targetRA, haveRA = ra, true
			io.WriteString(conn, "1")
		case strings.HasPrefix(cmd, ":Sd"):
			dec, err := parseSexagesimal(cmd[3:])
			if err != nil || dec < -90 || dec > 90 {
				io.WriteString(conn, "0")
				break
			}
			targetDEC, haveDEC = dec, true
			io.WriteString(conn, "1")
		case cmd == ":MS":
			if !haveRA || !haveDEC {
				io.WriteString(conn, "1No target#")
				break
			}
			ra, dec := targetRA, targetDEC
			if err := s.run("goto", func() error { return s.mount.Goto(ra, dec) }); err != nil {
				fmt.Fprintf(conn, "2%v#", err)
				break
			}
			io.WriteString(conn, "0")
		case cmd == ":CM":
			if !haveRA || !haveDEC {
				io.WriteString(conn, "No target#")
				break
			}
			ra, dec := targetRA, targetDEC
			if err := s.run("sync", func() error {
				_, err := s.mount.Sync(ra, dec)
				return err
			}); err != nil {
				io.WriteString(conn, "Sync failed#")
				break
			}
			io.WriteString(conn, "Coordinates matched#")
		case cmd == ":Q":
			s.run("abort", func() error { return s.mount.Abort() })
		case strings.HasPrefix(cmd, ":R"):
			// Rate selection belongs to the centering loop; accept silently.
		default:
			log.Debugf("%v unhandled command <%s#>", conn.RemoteAddr(), cmd)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Errorf("reading from %v: %v", conn.RemoteAddr(), err)
	}
}

// formatHours renders hours of right ascension as HH:MM:SS.
func formatHours(h float64) string {
	sec := int(math.Round(h * 3600))
	sec = ((sec % 86400) + 86400) % 86400
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, sec/60%60, sec%60)
}

// formatDegrees renders signed degrees as sDD:MM:SS.
func formatDegrees(d float64) string {
	sec := int(math.Round(d * 3600))
	sign := "+"
	if sec < 0 {
		sign = "-"
		sec = -sec
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, sec/3600, sec/60%60, sec%60)
}

// parseSexagesimal reads a signed three-field angle, tolerating whatever
// separators the client favors.
func parseSexagesimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	sign := 1.0
	switch {
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if len(fields) != 3 {
		return 0, fmt.Errorf("malformed angle %q", s)
	}
	var parts [3]int
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return 0, fmt.Errorf("malformed angle %q: %w", s, err)
		}
		parts[i] = v
	}
	if parts[1] > 59 || parts[2] > 59 {
		return 0, fmt.Errorf("malformed angle %q", s)
	}
	return sign * (float64(parts[0]) + float64(parts[1])/60 + float64(parts[2])/3600), nil
}
