package syncsim

import (
	"github.com/spacemeshos/go-peerdid/metrics"
)

const subsystem = "sim"

var (
	receivedRecords = metrics.NewCounter(
		"received_records",
		subsystem,
		"Records delivered to agents",
		[]string{"outcome"},
	)
	receivedMerged = receivedRecords.WithLabelValues("merged")
	receivedKnown  = receivedRecords.WithLabelValues("known")

	endorsements = metrics.NewCounter(
		"endorsements",
		subsystem,
		"Endorsements agents added to records of their own party",
		[]string{},
	).WithLabelValues()

	gossipOffers = metrics.NewCounter(
		"gossip_offers",
		subsystem,
		"Full state offers sent",
		[]string{"trigger"},
	)

	issuedCommands = metrics.NewCounter(
		"commands",
		subsystem,
		"Commands executed by agents",
		[]string{"command"},
	)

	agentsGauge = metrics.NewGauge(
		"agents",
		subsystem,
		"Running agents",
		[]string{},
	).WithLabelValues()
)
