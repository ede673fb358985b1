// Package frrconn emits a synthesized migration step as FRR (Free Range
// Routing) vtysh configuration commands over SSH, the way a plan would
// actually be rolled out against real routers once synthesis has
// validated its ordering in simulation.
package frrconn

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/nsg-ethz/snowcap-go/internal/telemetry"
	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/routemap"
)

// Conn is a single SSH session to one router's FRR management plane.
type Conn struct {
	client *ssh.Client
	router ids.RouterID
}

// Dial opens an SSH connection to a router's FRR host. Host key
// verification is intentionally skipped: this targets lab and simulated
// devices reachable only on a private management network, the same
// trust model the original device tunnel uses.
func Dial(router ids.RouterID, host, user, pass string, port int) (*Conn, error) {
	if port == 0 {
		port = 22
	}
	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(pass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("frrconn: dial %s@%s: %w", user, addr, err)
	}
	return &Conn{client: client, router: router}, nil
}

// Close releases the SSH connection.
func (c *Conn) Close() error {
	return c.client.Close()
}

// ApplyRouteMaps renders name's incoming/outgoing route-map lists as
// vtysh configuration commands and runs them in one configuration
// session.
func (c *Conn) ApplyRouteMaps(name string, in, out *routemap.List) error {
	cmds := RenderRouteMaps(name, in, out)
	return c.runConfig(cmds)
}

func (c *Conn) runConfig(cmds []string) error {
	session, err := c.client.NewSession()
	if err != nil {
		return fmt.Errorf("frrconn: session: %w", err)
	}
	defer session.Close()

	script := "configure terminal\n" + strings.Join(cmds, "\n") + "\nend\nwrite memory\n"
	telemetry.WithRouter(int(c.router)).WithField("commands", len(cmds)).Info("applying route-map configuration")

	out, err := session.CombinedOutput(fmt.Sprintf("vtysh -c '%s'", strings.ReplaceAll(script, "'", "'\\''")))
	if err != nil {
		return fmt.Errorf("frrconn: vtysh exec: %w (output: %s)", err, out)
	}
	return nil
}

// RenderRouteMaps renders a route-map list into `route-map NAME <permit|deny> SEQ`
// blocks, the FRR vtysh configuration syntax. A nil list renders no
// commands (FRR's implicit-allow default already matches an unset
// route-map).
func RenderRouteMaps(name string, in, out *routemap.List) []string {
	var cmds []string
	if in != nil {
		cmds = append(cmds, renderList(name+"-IN", in)...)
	}
	if out != nil {
		cmds = append(cmds, renderList(name+"-OUT", out)...)
	}
	return cmds
}

func renderList(name string, l *routemap.List) []string {
	var cmds []string
	cmds = append(cmds, fmt.Sprintf("no route-map %s", name))
	for _, rule := range l.Rules() {
		action := "permit"
		if rule.Action == routemap.Deny {
			action = "deny"
		}
		cmds = append(cmds, fmt.Sprintf("route-map %s %s %d", name, action, rule.Order))
		for _, m := range rule.Matches {
			if clause := renderMatch(m); clause != "" {
				cmds = append(cmds, " "+clause)
			}
		}
		for _, s := range rule.Sets {
			if clause := renderSet(s); clause != "" {
				cmds = append(cmds, " "+clause)
			}
		}
	}
	return cmds
}

func renderMatch(m routemap.Match) string {
	switch m.Kind {
	case routemap.MatchNeighbor:
		return fmt.Sprintf("match peer %v", m.Router)
	case routemap.MatchPrefix:
		return fmt.Sprintf("match ip address prefix-list PFX-%v", m.Prefix)
	case routemap.MatchAsPathContains:
		return fmt.Sprintf("match as-path AS-%v", m.AS)
	case routemap.MatchAsPathLength:
		return fmt.Sprintf("match as-path length %d-%d", m.LengthLo, m.LengthHi)
	case routemap.MatchNextHop:
		return fmt.Sprintf("match ip next-hop %v", m.Router)
	case routemap.MatchCommunity:
		return fmt.Sprintf("match community COMM-%d", m.Community)
	default:
		return ""
	}
}

func renderSet(s routemap.Set) string {
	switch s.Kind {
	case routemap.SetNextHop:
		return fmt.Sprintf("set ip next-hop %v", s.RouterVal)
	case routemap.SetLocalPref:
		return fmt.Sprintf("set local-preference %d", s.U32Val)
	case routemap.SetMed:
		return fmt.Sprintf("set metric %d", s.U32Val)
	case routemap.SetCommunity:
		return fmt.Sprintf("set community %d", s.U32Val)
	case routemap.SetClearCommunity:
		return "set community none"
	default:
		return ""
	}
}
