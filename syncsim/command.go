package syncsim

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrUnknownCommand is returned for a line no command matches.
	ErrUnknownCommand = errors.New("syncsim: unknown command")
	// ErrAmbiguousSpec is returned when an add or rem target cannot be parsed.
	ErrAmbiguousSpec = errors.New("syncsim: ambiguous agent spec")
)

const (
	addPrefix = "#add-"
	remPrefix = "#rem-"
)

var (
	linePattern   = regexp.MustCompile(`(?i)^\s*([a-z]\.[1-9])\s*:\s*(.+)$`)
	simplePattern = regexp.MustCompile(`^simple(?:\s+by\s+([1-9]@[a-z]))?$`)
	changePattern = regexp.MustCompile(`^(add|rem)\s+(\S+)(?:\s+by\s+(\S+))?$`)
	specPattern   = regexp.MustCompile(`^([A-Za-z])\.([1-9])(?:@([a-z]+))?(?:-([A-Za-z]\.[1-9](?:,[A-Za-z]\.[1-9])*))?$`)
	authPattern   = regexp.MustCompile(`^([1-9])@([a-z])$`)
)

// Command is one instruction addressed to an agent.
type Command interface {
	command()
	String() string
}

// Auth is the m-of-n policy requested for a change.
type Auth struct {
	N     int
	Group byte
}

func parseAuth(s string) (*Auth, error) {
	if s == "" {
		return nil, nil
	}
	m := authPattern.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("%w: policy %q", ErrUnknownCommand, s)
	}
	return &Auth{N: int(m[1][0] - '0'), Group: m[2][0]}, nil
}

func (a *Auth) String() string {
	if a == nil {
		return ""
	}
	return fmt.Sprintf(" by %d@%c", a.N, a.Group)
}

func (a *Auth) endorsement() *Endorsement {
	if a == nil {
		return nil
	}
	return &Endorsement{N: a.N, Group: a.Group}
}

// Spec names an agent, optionally with its groups and agents it replaces.
type Spec struct {
	Party  byte
	Num    byte
	Groups string
	Minus  []string
}

// ParseSpec parses `X.n[@groups][-X.n,...]`.
func ParseSpec(s string) (Spec, error) {
	m := specPattern.FindStringSubmatch(s)
	if m == nil {
		return Spec{}, fmt.Errorf("%w: %q", ErrAmbiguousSpec, s)
	}
	spec := Spec{
		Party:  strings.ToUpper(m[1])[0],
		Num:    m[2][0],
		Groups: m[3],
	}
	if m[4] != "" {
		for _, id := range strings.Split(m[4], ",") {
			spec.Minus = append(spec.Minus, strings.ToUpper(id))
		}
	}
	return spec, nil
}

// ID returns the agent id, e.g. "A.3".
func (s Spec) ID() string {
	return string([]byte{s.Party, '.', s.Num})
}

func (s Spec) String() string {
	var b strings.Builder
	b.WriteString(s.ID())
	if s.Groups != "" {
		b.WriteByte('@')
		b.WriteString(s.Groups)
	}
	if len(s.Minus) > 0 {
		b.WriteByte('-')
		b.WriteString(strings.Join(s.Minus, ","))
	}
	return b.String()
}

// Simple makes an arbitrary change.
type Simple struct {
	Auth *Auth
}

// Add proposes a new agent for the issuer's own party.
type Add struct {
	Spec Spec
	Auth *Auth
}

// Rem proposes removing an existing agent.
type Rem struct {
	Spec Spec
	Auth *Auth
}

// State logs a summary of the agent's knowledge.
type State struct{}

// Gossip exchanges state with every reachable agent.
type Gossip struct{}

// Resolve resolves a party's DID from the agent's repository. Ref is either
// a party letter or a name like "A.did@AB".
type Resolve struct {
	Ref string
}

func (Simple) command()  {}
func (Add) command()     {}
func (Rem) command()     {}
func (State) command()   {}
func (Gossip) command()  {}
func (Resolve) command() {}

func (c Simple) String() string  { return "simple" + c.Auth.String() }
func (c Add) String() string     { return "add " + c.Spec.String() + c.Auth.String() }
func (c Rem) String() string     { return "rem " + c.Spec.String() + c.Auth.String() }
func (State) String() string     { return "state" }
func (Gossip) String() string    { return "gossip" }
func (c Resolve) String() string { return "res " + c.Ref }

// Party returns the party the reference points at.
func (c Resolve) Party() byte {
	if c.Ref == "" {
		return 0
	}
	return strings.ToUpper(c.Ref[:1])[0]
}

// ParseCommand parses the text after the agent id.
func ParseCommand(s string) (Command, error) {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	switch {
	case strings.HasPrefix(lower, "state"):
		return State{}, nil
	case strings.HasPrefix(lower, "gossip"):
		return Gossip{}, nil
	case strings.HasPrefix(lower, "res"):
		fields := strings.Fields(s)
		if len(fields) != 2 || (fields[0] != "res" && fields[0] != "resolve") {
			return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
		}
		return Resolve{Ref: fields[1]}, nil
	}
	if m := simplePattern.FindStringSubmatch(s); m != nil {
		auth, err := parseAuth(m[1])
		if err != nil {
			return nil, err
		}
		return Simple{Auth: auth}, nil
	}
	m := changePattern.FindStringSubmatch(s)
	if m == nil {
		if strings.HasPrefix(s, "add") || strings.HasPrefix(s, "rem") {
			return nil, fmt.Errorf("%w: %q", ErrAmbiguousSpec, s)
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
	spec, err := ParseSpec(m[2])
	if err != nil {
		return nil, err
	}
	auth, err := parseAuth(m[3])
	if err != nil {
		return nil, err
	}
	if m[1] == "add" {
		return Add{Spec: spec, Auth: auth}, nil
	}
	return Rem{Spec: spec, Auth: auth}, nil
}

// Instruction is a command together with the agent it is addressed to.
type Instruction struct {
	Target  string
	Command Command
}

func (in Instruction) String() string {
	return in.Target + ": " + in.Command.String()
}

// ParseInstruction parses a line of the form `A.1: <command>`.
func ParseInstruction(line string) (Instruction, error) {
	m := linePattern.FindStringSubmatch(line)
	if m == nil {
		return Instruction{}, fmt.Errorf("%w: %q", ErrUnknownCommand, strings.TrimSpace(line))
	}
	cmd, err := ParseCommand(m[2])
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{Target: strings.ToUpper(m[1]), Command: cmd}, nil
}
