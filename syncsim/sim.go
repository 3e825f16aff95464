// Package syncsim simulates agents of several parties keeping their DID
// documents in sync by exchanging change records over in-process mailboxes.
package syncsim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/go-peerdid/delta"
	"github.com/spacemeshos/go-peerdid/document"
	"github.com/spacemeshos/go-peerdid/signing"
)

var (
	ErrStarted       = errors.New("syncsim: simulation already started")
	ErrNotStarted    = errors.New("syncsim: simulation not started")
	ErrTooFewParties = errors.New("syncsim: need at least two parties")
	ErrUnknownAgent  = errors.New("syncsim: unknown agent")
	ErrAgentExists   = errors.New("syncsim: agent exists")
	ErrParty         = errors.New("syncsim: bad party")
	ErrStopped       = errors.New("syncsim: simulation stopped")
)

// Opt configures a Simulation.
type Opt func(*Simulation)

func WithLogger(logger *zap.Logger) Opt {
	return func(s *Simulation) {
		s.logger = logger
	}
}

func WithClock(clock clockwork.Clock) Opt {
	return func(s *Simulation) {
		s.clock = clock
	}
}

// WithFs overrides the filesystem agent repositories live on.
func WithFs(fs afero.Fs) Opt {
	return func(s *Simulation) {
		s.fs = fs
	}
}

type partyDef struct {
	id       byte
	template *document.Value
	profiles []Profile
	signers  []*signing.EdSigner
}

// Simulation owns the agents of a session, the shared command queue and the
// bookkeeping needed to tell when all agents are idle.
type Simulation struct {
	cfg         Config
	logger      *zap.Logger
	clock       clockwork.Clock
	fs          afero.Fs
	session     string
	sessionPath string
	connections []Connection
	autogossip  atomic.Bool
	pending     *pending

	randMu sync.Mutex
	rand   *rand.Rand

	defs    map[byte]*partyDef
	genesis map[byte]*delta.Delta

	mu     sync.RWMutex
	agents map[string]*Agent
	ctx    context.Context
	eg     *errgroup.Group

	cmdMu sync.Mutex
	cmds  []Instruction
}

// New creates a simulation. Parties are added with AddParty before Start.
func New(cfg Config, opts ...Opt) (*Simulation, error) {
	conns, err := ParseConnections(cfg.Connections)
	if err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	s := &Simulation{
		cfg:         cfg,
		logger:      zap.NewNop(),
		clock:       clockwork.NewRealClock(),
		session:     uuid.NewString(),
		connections: conns,
		pending:     newPending(),
		rand:        rand.New(rand.NewPCG(seed, seed>>1|1)),
		defs:        map[byte]*partyDef{},
		genesis:     map[byte]*delta.Delta{},
		agents:      map[string]*Agent{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fs == nil {
		if cfg.SessionDir == "" {
			s.fs = afero.NewMemMapFs()
		} else {
			s.fs = afero.NewOsFs()
		}
	}
	root := cfg.SessionDir
	if root == "" {
		root = "/sessions"
	}
	s.sessionPath = filepath.Join(root, "session-"+s.session[:8])
	s.logger = s.logger.With(zap.String("session", s.session))
	s.autogossip.Store(cfg.Autogossip)
	return s, nil
}

// Session returns the session id.
func (s *Simulation) Session() string { return s.session }

// SessionPath returns the directory holding agent repositories.
func (s *Simulation) SessionPath() string { return s.sessionPath }

func (s *Simulation) childRand() *rand.Rand {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return rand.New(rand.NewPCG(s.rand.Uint64(), s.rand.Uint64()))
}

// AddParty registers a party with the template its genesis document is made
// from. Each authorization profile of the template becomes an agent.
func (s *Simulation) AddParty(party byte, template *document.Value) error {
	if s.started() {
		return ErrStarted
	}
	if party < 'A' || party > 'Z' {
		return fmt.Errorf("%w: %q", ErrParty, party)
	}
	if _, exists := s.defs[party]; exists {
		return fmt.Errorf("%w: %c added twice", ErrParty, party)
	}
	profiles, err := Profiles(template)
	if err != nil {
		return err
	}
	s.defs[party] = &partyDef{id: party, template: template.Clone(), profiles: profiles}
	return nil
}

func (s *Simulation) parties() []byte {
	out := make([]byte, 0, len(s.defs))
	for party := range s.defs {
		out = append(out, party)
	}
	slices.Sort(out)
	return out
}

func (s *Simulation) started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eg != nil
}

// makeGenesis creates the keys of a party's agents and the genesis delta
// publishing them, endorsed by every key.
func (s *Simulation) makeGenesis(def *partyDef) (*delta.Delta, error) {
	doc := def.template.Clone()
	keys := make([]*document.Value, 0, len(def.profiles))
	for i := range def.profiles {
		signer, err := signing.NewEdSigner(signing.WithKid(fmt.Sprintf("%c.%d", def.id, i+1)))
		if err != nil {
			return nil, err
		}
		def.signers = append(def.signers, signer)
		keys = append(keys, signer.VerificationMethod())
	}
	doc.Set("publicKey", document.NewArray(keys...))
	data, err := document.MarshalIndent(doc)
	if err != nil {
		return nil, err
	}
	by := make([]string, 0, len(def.signers))
	for _, signer := range def.signers {
		by = append(by, signer.Endorse(data))
	}
	return delta.New(delta.JSONBytes(data), by, delta.WithClock(s.clock))
}

// Start creates the genesis documents and launches one goroutine per agent.
// The goroutines stop when ctx is done or any of them fails.
func (s *Simulation) Start(ctx context.Context) error {
	if s.started() {
		return ErrStarted
	}
	if len(s.defs) < 2 {
		return ErrTooFewParties
	}
	if err := s.fs.MkdirAll(s.sessionPath, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	for _, party := range s.parties() {
		g, err := s.makeGenesis(s.defs[party])
		if err != nil {
			return fmt.Errorf("genesis of %c: %w", party, err)
		}
		s.genesis[party] = g
		s.logger.Info("party created", zap.String("party", string(party)), zap.Stringer("did", g.DID()))
	}

	var agents []*Agent
	for _, party := range s.parties() {
		for i, p := range s.defs[party].profiles {
			id := fmt.Sprintf("%c.%d", party, i+1)
			a, err := s.newAgent(ctx, id, p.Groups, s.defs[party].signers[i], nil)
			if err != nil {
				for _, started := range agents {
					started.repo.Close()
				}
				return err
			}
			agents = append(agents, a)
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	s.mu.Lock()
	s.eg, s.ctx = eg, ctx
	for _, a := range agents {
		s.agents[a.id] = a
	}
	s.mu.Unlock()
	for _, a := range agents {
		eg.Go(func() error { return a.run(ctx) })
	}
	s.logger.Info("simulation started",
		zap.Int("agents", len(agents)),
		zap.String("path", s.sessionPath),
	)
	return nil
}

// spawn registers a new agent in its party, starting from the given records.
func (s *Simulation) spawn(ctx context.Context, spec Spec, records map[byte][]Record) error {
	id := spec.ID()
	a, err := s.newAgent(ctx, id, spec.Groups, nil, records)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if _, exists := s.agents[id]; exists {
		s.mu.Unlock()
		a.repo.Close()
		return fmt.Errorf("%w: %s", ErrAgentExists, id)
	}
	s.agents[id] = a
	a.cursor = s.queueLen()
	eg, runCtx := s.eg, s.ctx
	s.mu.Unlock()
	eg.Go(func() error { return a.run(runCtx) })
	s.logger.Info("agent spawned", zap.String("agent", id), zap.Strings("reach", a.reach))
	return nil
}

// Agent returns a registered agent.
func (s *Simulation) Agent(id string) (*Agent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[strings.ToUpper(id)]
	return a, ok
}

// Agents returns all agents ordered by id.
func (s *Simulation) Agents() []*Agent {
	s.mu.RLock()
	out := make([]*Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Agent) int { return strings.Compare(a.id, b.id) })
	return out
}

// send queues msg for agent to. It reports false when there is no such agent.
func (s *Simulation) send(to string, msg message) bool {
	a, ok := s.Agent(to)
	if !ok {
		s.logger.Debug("dropped message for unknown agent", zap.String("agent", to))
		return false
	}
	s.pending.add(1)
	a.mailbox.push(msg)
	return true
}

func (s *Simulation) queueLen() int {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	return len(s.cmds)
}

func (s *Simulation) instruction(i int) (Instruction, bool) {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	if i >= len(s.cmds) {
		return Instruction{}, false
	}
	return s.cmds[i], true
}

// Issue parses a line like "A.1: simple by 2@a" and queues it for its agent.
func (s *Simulation) Issue(line string) error {
	in, err := ParseInstruction(line)
	if err != nil {
		return err
	}
	return s.IssueInstruction(in)
}

// IssueInstruction queues a parsed instruction.
func (s *Simulation) IssueInstruction(in Instruction) error {
	if !s.started() {
		return ErrNotStarted
	}
	a, ok := s.Agent(in.Target)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, in.Target)
	}
	s.pending.add(1)
	s.cmdMu.Lock()
	s.cmds = append(s.cmds, in)
	s.cmdMu.Unlock()
	a.mailbox.poke()
	s.logger.Debug("issued", zap.Stringer("instruction", in))
	return nil
}

// Settle blocks until every issued command ran and every mailbox is empty.
// With autogossip on the simulation may never settle. It fails with
// ErrStopped once the agents were shut down.
func (s *Simulation) Settle(ctx context.Context) error {
	if !s.started() {
		return ErrNotStarted
	}
	s.mu.RLock()
	runCtx := s.ctx
	s.mu.RUnlock()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-runCtx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	err := s.pending.wait(ctx)
	if runErr := runCtx.Err(); runErr != nil {
		return fmt.Errorf("%w: %w", ErrStopped, runErr)
	}
	return err
}

// SetAutogossip switches background gossip on or off.
func (s *Simulation) SetAutogossip(on bool) {
	s.autogossip.Store(on)
	s.logger.Info("autogossip", zap.Bool("on", on))
}

// Autogossip reports whether background gossip is on.
func (s *Simulation) Autogossip() bool {
	return s.autogossip.Load()
}

// Wait blocks until all agents stopped and returns the first agent failure.
func (s *Simulation) Wait() error {
	s.mu.RLock()
	eg := s.eg
	s.mu.RUnlock()
	if eg == nil {
		return ErrNotStarted
	}
	return eg.Wait()
}

// StateGroup is a set of agents sharing the same records.
type StateGroup struct {
	Summary string
	Agents  []string
}

// Report groups agents by the records they hold.
type Report struct {
	Groups []StateGroup
}

// Converged reports whether all agents agree.
func (r Report) Converged() bool {
	return len(r.Groups) <= 1
}

// Check compares the records of all agents.
func (s *Simulation) Check() Report {
	byState := map[string][]string{}
	var order []string
	for _, a := range s.Agents() {
		summary := a.Summary()
		if _, ok := byState[summary]; !ok {
			order = append(order, summary)
		}
		byState[summary] = append(byState[summary], a.id)
	}
	slices.SortStableFunc(order, func(a, b string) int {
		return len(byState[b]) - len(byState[a])
	})
	report := Report{}
	for _, summary := range order {
		report.Groups = append(report.Groups, StateGroup{Summary: summary, Agents: byState[summary]})
	}
	return report
}

// Reach returns the reachable agents of every agent whose id matches
// pattern, where '*' matches any run of characters and '?' a single one.
func (s *Simulation) Reach(pattern string) (map[string][]string, error) {
	expr := regexp.QuoteMeta(strings.TrimSpace(pattern))
	expr = strings.NewReplacer(`\*`, ".*", `\?`, ".").Replace(expr)
	re, err := regexp.Compile("(?i)^" + expr)
	if err != nil {
		return nil, err
	}
	out := map[string][]string{}
	if s.started() {
		for _, a := range s.Agents() {
			if re.MatchString(a.id) {
				out[a.id] = a.Reachable()
			}
		}
		return out, nil
	}
	for _, party := range s.parties() {
		for i := range s.defs[party].profiles {
			id := fmt.Sprintf("%c.%d", party, i+1)
			if re.MatchString(id) {
				out[id] = Reachable(id, s.connections)
			}
		}
	}
	return out, nil
}
