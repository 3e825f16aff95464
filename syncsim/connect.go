package syncsim

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// ErrConnection is returned for an unparsable connection.
var ErrConnection = errors.New("syncsim: malformed connection")

var connectionPattern = regexp.MustCompile(`^([A-Z][.]\d)(\+-?\+|-\+|\+-)([A-Z].*)$`)

// Connection describes which agents may push updates to which. A '+' next to
// a side marks that side as updatable by the other one, so `A.1+-A.3` lets
// A.3 update A.1 and `A.1+-+A.2` works both ways.
type Connection struct {
	Left      string
	Connector string
	Right     []string
}

// ParseConnection parses `<id><connector><id>[,<id>...]`, case-insensitive.
func ParseConnection(s string) (Connection, error) {
	m := connectionPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil {
		return Connection{}, fmt.Errorf("%w: %q", ErrConnection, s)
	}
	c := Connection{Left: m[1], Connector: m[2]}
	for _, id := range strings.Split(m[3], ",") {
		if id = strings.TrimSpace(id); id != "" {
			c.Right = append(c.Right, id)
		}
	}
	return c, nil
}

// ParseConnections parses a whitespace separated list of connections.
func ParseConnections(s string) ([]Connection, error) {
	var out []Connection
	for _, field := range strings.Fields(s) {
		c, err := ParseConnection(field)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (c Connection) String() string {
	return c.Left + c.Connector + strings.Join(c.Right, ",")
}

// Reachable returns the agents id can push updates to, sorted and
// deduplicated.
func Reachable(id string, conns []Connection) []string {
	id = strings.ToUpper(id)
	var out []string
	for _, c := range conns {
		if c.Left == id && strings.HasSuffix(c.Connector, "+") {
			out = append(out, c.Right...)
		}
		if slices.Contains(c.Right, id) && strings.HasPrefix(c.Connector, "+") {
			out = append(out, c.Left)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
