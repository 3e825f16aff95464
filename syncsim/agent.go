package syncsim

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spacemeshos/go-peerdid/did"
	"github.com/spacemeshos/go-peerdid/document"
	"github.com/spacemeshos/go-peerdid/repo"
	"github.com/spacemeshos/go-peerdid/signing"
)

// Agent is one simulated device of a party. It owns its records and is the
// only goroutine that mutates them; other agents reach it through its
// mailbox.
type Agent struct {
	id     string
	party  byte
	groups string
	reach  []string

	sim    *Simulation
	logger *zap.Logger
	signer *signing.EdSigner
	repo   *repo.Repository
	dids   map[byte]did.DID
	rng    *rand.Rand

	mailbox *mailbox
	cursor  int

	mu      sync.Mutex
	records map[byte][]Record
}

// ID returns the agent id, e.g. "A.1".
func (a *Agent) ID() string { return a.id }

// Party returns the party letter.
func (a *Agent) Party() byte { return a.party }

// Groups returns the endorsement groups the agent belongs to.
func (a *Agent) Groups() string { return a.groups }

// Reachable returns the agents this one pushes updates to.
func (a *Agent) Reachable() []string { return slices.Clone(a.reach) }

// Signer returns the agent's key.
func (a *Agent) Signer() *signing.EdSigner { return a.signer }

// DID returns the DID of a party's genesis document.
func (a *Agent) DID(party byte) (did.DID, bool) {
	id, ok := a.dids[party]
	return id, ok
}

// Records returns a copy of the agent's records by party.
func (a *Agent) Records() map[byte][]Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[byte][]Record, len(a.records))
	for party, recs := range a.records {
		cp := make([]Record, len(recs))
		for i, r := range recs {
			cp[i] = r.Clone()
		}
		out[party] = cp
	}
	return out
}

func (a *Agent) recordsOf(party byte) []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.records[party]
}

// Summary renders the records of every party, e.g. "A=#1f2e+#add-A.5; B=".
func (a *Agent) Summary() string {
	records := a.Records()
	parties := make([]byte, 0, len(records))
	for party := range records {
		parties = append(parties, party)
	}
	slices.Sort(parties)
	parts := make([]string, 0, len(parties))
	for _, party := range parties {
		texts := make([]string, 0, len(records[party]))
		for _, r := range records[party] {
			texts = append(texts, r.String())
		}
		parts = append(parts, string(party)+"="+strings.Join(texts, "+"))
	}
	return strings.Join(parts, "; ")
}

func (a *Agent) eligibility(party byte) Eligibility {
	return Eligibility{ID: a.id, Groups: a.groups, OwnParty: party == a.party}
}

func endorsedBy(r Record, id string) bool {
	return r.Endorsement != nil && slices.Contains(r.Endorsement.By, id)
}

// merge folds one record into the agent's state.
func (a *Agent) merge(party byte, in Record) (Record, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	known := a.records[party]
	before := false
	if i := slices.IndexFunc(known, func(r Record) bool { return r.Key == in.Key }); i >= 0 {
		before = endorsedBy(known[i], a.id)
	}
	merged, result, changed := Merge(known, in, a.eligibility(party))
	if !changed {
		return result, false
	}
	a.records[party] = merged
	if !before && !endorsedBy(in, a.id) && endorsedBy(result, a.id) {
		endorsements.Inc()
		a.logger.Debug("endorsed record", zap.String("record", result.String()))
	}
	return result, true
}

// receive merges a record delivered by another agent.
func (a *Agent) receive(party byte, in Record) {
	if a.sim.cfg.Jitter > 0 {
		a.sim.clock.Sleep(time.Duration(a.rng.Int64N(int64(a.sim.cfg.Jitter))))
	}
	result, changed := a.merge(party, in)
	if changed {
		receivedMerged.Inc()
	} else {
		receivedKnown.Inc()
	}
	a.logger.Debug("received record",
		zap.String("party", string(party)),
		zap.String("record", result.String()),
		zap.Bool("changed", changed),
	)
}

func (a *Agent) broadcast(party byte, r Record) {
	for _, id := range a.reach {
		a.sim.send(id, delivery{party: party, record: r.Clone()})
	}
}

func (a *Agent) gossip(trigger string, targets ...string) {
	state := a.Records()
	for _, id := range targets {
		if a.sim.send(id, offer{from: a.id, records: state}) {
			gossipOffers.WithLabelValues(trigger).Inc()
		}
	}
}

func (a *Agent) autogossip() {
	if len(a.reach) == 0 || a.rng.Float64() >= a.sim.cfg.AutogossipProbability {
		return
	}
	target := a.reach[a.rng.IntN(len(a.reach))]
	a.logger.Debug("autogossip", zap.String("with", target))
	a.gossip("auto", target)
}

func sortedParties(records map[byte][]Record) []byte {
	parties := make([]byte, 0, len(records))
	for party := range records {
		parties = append(parties, party)
	}
	slices.Sort(parties)
	return parties
}

// handleOffer merges what the sender knows and answers with what the sender
// lacks.
func (a *Agent) handleOffer(o offer) {
	for _, party := range sortedParties(o.records) {
		for _, r := range Lacks(a.recordsOf(party), o.records[party]) {
			a.receive(party, r)
		}
	}
	mine := a.Records()
	for _, party := range sortedParties(mine) {
		for _, r := range Lacks(o.records[party], mine[party]) {
			a.sim.send(o.from, delivery{party: party, record: r})
		}
	}
}

func (a *Agent) handle(msg message) {
	switch m := msg.(type) {
	case delivery:
		a.receive(m.party, m.record)
	case offer:
		a.handleOffer(m)
	}
}

// propose records a change made by this agent and broadcasts it.
func (a *Agent) propose(r Record) Record {
	result, _ := a.merge(a.party, r)
	a.broadcast(a.party, result)
	return result
}

func (a *Agent) execute(ctx context.Context, cmd Command) error {
	logger := a.logger.With(zap.Stringer("command", cmd))
	switch c := cmd.(type) {
	case Simple:
		key := fmt.Sprintf("#%x", 4096+a.rng.IntN(65536-4096+1))
		r := a.propose(Record{Key: key, Endorsement: c.Auth.endorsement()})
		logger.Info("made change", zap.String("record", r.String()))
	case Add:
		if c.Spec.Party != a.party {
			logger.Warn("can only add agents to own party")
			return nil
		}
		if _, exists := a.sim.Agent(c.Spec.ID()); exists {
			logger.Warn("agent already exists")
			return nil
		}
		r := a.propose(Record{Key: addPrefix + c.Spec.String(), Endorsement: c.Auth.endorsement()})
		if err := a.sim.spawn(ctx, c.Spec, a.Records()); err != nil {
			return err
		}
		logger.Info("added agent", zap.String("record", r.String()))
	case Rem:
		if c.Spec.Party != a.party {
			logger.Warn("can only remove agents of own party")
			return nil
		}
		if _, exists := a.sim.Agent(c.Spec.ID()); !exists {
			logger.Warn("no such agent")
			return nil
		}
		r := a.propose(Record{Key: remPrefix + c.Spec.String(), Endorsement: c.Auth.endorsement()})
		logger.Info("proposed removal", zap.String("record", r.String()))
	case State:
		logger.Info("state",
			zap.String("key", a.signer.PublicKey().ShortString()),
			zap.String("dids", a.didSummary()),
			zap.String("records", a.Summary()),
			zap.Strings("reach", a.reach),
		)
	case Gossip:
		a.gossip("command", a.reach...)
	case Resolve:
		return a.resolve(ctx, logger, c)
	default:
		return fmt.Errorf("unhandled command %T", cmd)
	}
	return nil
}

func (a *Agent) didSummary() string {
	parts := make([]string, 0, len(a.dids))
	for _, party := range a.sim.parties() {
		if id, ok := a.dids[party]; ok {
			parts = append(parts, string(party)+"="+did.Abbreviate(id.String()))
		}
	}
	return strings.Join(parts, " ")
}

func (a *Agent) resolve(ctx context.Context, logger *zap.Logger, c Resolve) error {
	id, ok := a.dids[c.Party()]
	if !ok {
		logger.Warn("unknown party")
		return nil
	}
	doc, err := a.repo.Resolve(ctx, id.String())
	if errors.Is(err, repo.ErrNotFound) {
		logger.Warn("document not found", zap.Stringer("did", id))
		return nil
	} else if err != nil {
		return fmt.Errorf("%s: resolve %s: %w", a.id, id, err)
	}
	data, err := document.MarshalIndent(doc)
	if err != nil {
		return err
	}
	logger.Info("resolved", zap.Stringer("did", id), zap.ByteString("doc", data))
	return nil
}

// step handles queued messages and commands addressed to the agent.
func (a *Agent) step(ctx context.Context) error {
	for _, msg := range a.mailbox.drain() {
		a.handle(msg)
		a.sim.pending.done()
	}
	for {
		in, ok := a.sim.instruction(a.cursor)
		if !ok {
			return nil
		}
		a.cursor++
		if in.Target != a.id {
			continue
		}
		issuedCommands.WithLabelValues(strings.Fields(in.Command.String())[0]).Inc()
		err := a.execute(ctx, in.Command)
		a.sim.pending.done()
		if err != nil {
			return err
		}
	}
}

func (a *Agent) run(ctx context.Context) error {
	agentsGauge.Inc()
	defer agentsGauge.Dec()
	defer func() {
		if err := a.repo.Close(); err != nil {
			a.logger.Warn("failed to close repository", zap.Error(err))
		}
	}()

	var tick <-chan time.Time
	if a.sim.cfg.AutogossipInterval > 0 {
		ticker := a.sim.clock.NewTicker(a.sim.cfg.AutogossipInterval)
		defer ticker.Stop()
		tick = ticker.Chan()
	}
	for {
		if err := a.step(ctx); err != nil {
			a.logger.Error("agent failed", zap.Error(err))
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-a.mailbox.wake:
		case <-tick:
			if a.sim.autogossip.Load() {
				a.autogossip()
			}
		}
	}
}

func (s *Simulation) newAgent(
	ctx context.Context,
	id, groups string,
	signer *signing.EdSigner,
	records map[byte][]Record,
) (*Agent, error) {
	if signer == nil {
		var err error
		if signer, err = signing.NewEdSigner(signing.WithKid(id)); err != nil {
			return nil, err
		}
	}
	logger := s.logger.Named(id)
	r, err := repo.New(filepath.Join(s.sessionPath, id),
		repo.WithFs(s.fs),
		repo.WithBackend(s.cfg.Backend),
		repo.WithLogger(logger.Named("repo")),
		repo.WithClock(s.clock),
	)
	if err != nil {
		return nil, err
	}
	a := &Agent{
		id:      id,
		party:   id[0],
		groups:  groups,
		reach:   Reachable(id, s.connections),
		sim:     s,
		logger:  logger,
		signer:  signer,
		repo:    r,
		dids:    make(map[byte]did.DID, len(s.genesis)),
		rng:     s.childRand(),
		mailbox: newMailbox(),
		records: records,
	}
	if a.records == nil {
		a.records = map[byte][]Record{}
	}
	for _, party := range s.parties() {
		created, err := r.CreateFromDelta(ctx, s.genesis[party])
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("%s: store genesis of %c: %w", id, party, err)
		}
		a.dids[party] = created
	}
	return a, nil
}
