// Package connector assembles the concrete pieces — config, host client,
// resource builder, input stager, registration set, event bus — into a
// runnable Processor, which the caller then hands to whichever Transport it
// selected. The RegistrationSet is genuinely process-wide, so it's modeled
// as a synchronized set owned by the Connector type, shared across every
// Processor the Connector builds.
package connector

import (
	"context"

	golog "github.com/ipfs/go-log"

	"github.com/clowder-framework/extractor-connector/config"
	"github.com/clowder-framework/extractor-connector/event"
	"github.com/clowder-framework/extractor-connector/extractor"
	"github.com/clowder-framework/extractor-connector/hostclient"
	"github.com/clowder-framework/extractor-connector/mount"
	"github.com/clowder-framework/extractor-connector/process"
	"github.com/clowder-framework/extractor-connector/resource"
	"github.com/clowder-framework/extractor-connector/stage"
)

var log = golog.Logger("connector")

// Connector owns everything shared across every message this process
// handles, regardless of which Transport ultimately drives it.
type Connector struct {
	Config *config.Config
	Info   extractor.Info

	Host         *hostclient.Client
	Bus          event.Bus
	Registration *process.RegistrationSet

	Check   process.CheckFunc
	Process process.ProcessFunc
}

// New builds a Connector from cfg, wiring the host client's SSL setting
// and converting cfg.Extractor into an extractor.Info.
func New(cfg *config.Config, check process.CheckFunc, proc process.ProcessFunc) *Connector {
	info := extractor.Info{
		Name:    cfg.Extractor.Name,
		Version: cfg.Extractor.Version,
		Process: cfg.Extractor.Process,
	}

	host := hostclient.New().WithSSLVerify(cfg.Host.SSLVerify)

	return &Connector{
		Config:       cfg,
		Info:         info,
		Host:         host,
		Bus:          event.NewBus(),
		Registration: process.NewRegistrationSet(),
		Check:        check,
		Process:      proc,
	}
}

// NewProcessor assembles a fresh process.Processor wired against this
// Connector's shared state. Transports call this once and reuse the
// Processor for every message they drive (the broker transport copies it
// per-handler to swap in a per-delivery Sink; see transport/broker).
func (c *Connector) NewProcessor() *process.Processor {
	builder := resource.NewBuilder(c.Host, c.Info, &registrationStatusSink{c})
	resolver := mount.NewResolver(toMountMap(c.Config.Mount))
	stager := stage.NewStager(c.Host, resolver)

	return &process.Processor{
		Info:         c.Info,
		Host:         c.Host,
		Builder:      builder,
		Stager:       stager,
		Registration: c.Registration,
		Bus:          c.Bus,
		Check:        c.Check,
		Process:      c.Process,
	}
}

func toMountMap(m *config.Mount) mount.Map {
	if m == nil {
		return mount.Map{}
	}
	entries := make([]mount.Entry, 0, len(m.Entries))
	for _, e := range m.Entries {
		entries = append(entries, mount.Entry{Source: e.Source, Target: e.Target})
	}
	return mount.NewMap(entries...)
}

// registrationStatusSink adapts resource.Builder's dataset-prefetch-failure
// reporting onto the Connector's event bus, since the Builder itself has no
// broker/logfile to publish to directly.
type registrationStatusSink struct {
	c *Connector
}

func (s *registrationStatusSink) ReportError(id string, message string) {
	log.Errorw("dataset prefetch failed", "id", id, "message", message)
	if s.c.Bus != nil {
		s.c.Bus.Publish(context.Background(), event.ETStatus, event.StatusEvent{ResourceID: id, Status: string(extractor.StatusError), Message: message})
	}
}
