package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spacemeshos/go-peerdid/cmd"
	"github.com/spacemeshos/go-peerdid/config"
	"github.com/spacemeshos/go-peerdid/metrics"
	"github.com/spacemeshos/go-peerdid/syncsim"
)

const (
	printPrefix = "> "
	agentHelp   = `agent instructions:
  <agent>: simple [by N@g]           make a change
  <agent>: add X.n[@groups] [by N@g] propose a new agent of the own party
  <agent>: rem X.n [by N@g]          propose removing an agent
  <agent>: state | gossip | res <party>`
)

func newSimCommand(a *app) *cobra.Command {
	var parties []string
	c := &cobra.Command{
		Use:   "sim [script]",
		Short: "simulate agents of several parties syncing their DID documents",
		Long: "Runs agents of every party and reads instructions from the script or stdin.\n" +
			"Parties are given as --party A=template.json, the default is two parties\n" +
			"A and B with a built-in template of four agents each.\n\n" + agentHelp,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			in := c.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			return runSim(c.Context(), a, parties, in, c.OutOrStdout())
		},
	}
	c.Flags().StringArrayVar(&parties, "party", nil, "party template as X=path, may be repeated")
	cmd.AddSimFlags(c.Flags(), &a.conf)
	return c
}

func loadParties(sim *syncsim.Simulation, specs []string) error {
	if len(specs) == 0 {
		specs = []string{"A=", "B="}
	}
	for _, spec := range specs {
		name, path, ok := strings.Cut(spec, "=")
		if !ok || len(name) != 1 {
			return fmt.Errorf("bad party %q, want X=template.json", spec)
		}
		party := strings.ToUpper(name)[0]
		template := syncsim.DefaultTemplate(party)
		if path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			if template, err = syncsim.LoadTemplate(data, party); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
		}
		if err := sim.AddParty(party, template); err != nil {
			return err
		}
	}
	return nil
}

func runSim(ctx context.Context, a *app, parties []string, in io.Reader, out io.Writer) error {
	sim, err := syncsim.New(a.conf.Sim, syncsim.WithLogger(a.levels.Named(config.SimLogger)))
	if err != nil {
		return err
	}
	if err := loadParties(sim, parties); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if a.conf.MetricsPush != "" {
		metrics.StartPushingMetrics(ctx, a.logger, a.conf.MetricsPush, a.conf.MetricsPushPeriod, sim.Session())
	}
	if err := sim.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "session %s\n", sim.Session())

	replErr := newRepl(ctx, sim, out).run(in)
	cancel()
	if err := sim.Wait(); err != nil {
		return err
	}
	return replErr
}

type command struct {
	text        string
	description string
	fn          func(args string) error
}

type repl struct {
	ctx      context.Context
	sim      *syncsim.Simulation
	out      io.Writer
	commands []command
	quit     bool
}

func newRepl(ctx context.Context, sim *syncsim.Simulation, out io.Writer) *repl {
	r := &repl{ctx: ctx, sim: sim, out: out}
	r.commands = []command{
		{"help", "Show this help.", r.help},
		{"check", "Group agents by what they know.", r.check},
		{"reach", "Show who reaches whom, e.g. reach A.*", r.reach},
		{"autogossip", "Switch background gossip on or off.", r.autogossip},
		{"settle", "Wait until all agents are idle.", r.settle},
		{"quit", "Stop the session.", r.stop},
	}
	return r
}

// executor runs one line. Lines that are no session command are agent
// instructions.
func (r *repl) executor(text string) error {
	word, args, _ := strings.Cut(text, " ")
	for _, c := range r.commands {
		if strings.EqualFold(word, c.text) {
			return c.fn(strings.TrimSpace(args))
		}
	}
	if err := r.sim.Issue(text); err != nil {
		fmt.Fprintln(r.out, printPrefix, err)
	}
	return nil
}

func (r *repl) help(string) error {
	for _, c := range r.commands {
		fmt.Fprintf(r.out, "  %-12s %s\n", c.text, c.description)
	}
	fmt.Fprintln(r.out, agentHelp)
	return nil
}

func (r *repl) check(string) error {
	report := r.sim.Check()
	if report.Converged() {
		fmt.Fprintln(r.out, "converged")
	}
	for _, g := range report.Groups {
		fmt.Fprintf(r.out, "%s: %s\n", strings.Join(g.Agents, ","), g.Summary)
	}
	return nil
}

func (r *repl) reach(pattern string) error {
	if pattern == "" {
		pattern = "*"
	}
	reach, err := r.sim.Reach(pattern)
	if err != nil {
		fmt.Fprintln(r.out, printPrefix, err)
		return nil
	}
	ids := make([]string, 0, len(reach))
	for id := range reach {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		fmt.Fprintf(r.out, "%s: %s\n", id, strings.Join(reach[id], ", "))
	}
	return nil
}

func (r *repl) autogossip(arg string) error {
	switch arg {
	case "on":
		r.sim.SetAutogossip(true)
	case "off":
		r.sim.SetAutogossip(false)
	}
	fmt.Fprintf(r.out, "autogossip %t\n", r.sim.Autogossip())
	return nil
}

func (r *repl) settle(string) error {
	return r.sim.Settle(r.ctx)
}

func (r *repl) stop(string) error {
	r.quit = true
	return nil
}

// run executes lines until the input ends or quit. Without autogossip it
// waits for the agents to settle at the end of the input.
func (r *repl) run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := r.executor(line); err != nil {
			return err
		}
		if r.quit {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if r.sim.Autogossip() {
		return nil
	}
	return r.sim.Settle(r.ctx)
}
