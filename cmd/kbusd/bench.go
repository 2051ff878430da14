package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kbus-project/kbus/pkg/bus"
	"github.com/kbus-project/kbus/pkg/peer"
	"github.com/kbus-project/kbus/pkg/queue"
)

func newBenchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "connect a handful of peers, multicast from the first to all the others, and print delivery order",
	}
	load := bindConfigFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := load()
		if err != nil {
			return err
		}
		configureLogging(cfg.LogLevel)

		b := bus.NewBus(cfg.Namespace)
		peers := make([]*peer.Peer, cfg.BenchPeers)
		for i := range peers {
			p, err := b.Connect(peer.Credentials{})
			if err != nil {
				return err
			}
			peers[i] = p
		}
		defer func() {
			for _, p := range peers {
				b.Disconnect(p)
			}
		}()

		sender := peers[0]
		var dests []peer.ID
		for _, p := range peers[1:] {
			dests = append(dests, p.ID)
		}

		for m := 0; m < cfg.BenchMsgs; m++ {
			if err := sendOnce(b, sender, dests, fmt.Sprintf("msg-%d", m)); err != nil {
				log.Err(err).Msg("kbusd bench: send failed")
				continue
			}
		}

		for _, p := range peers[1:] {
			drainAndPrint(p)
		}
		return nil
	}
	return cmd
}

func sendOnce(b *bus.Bus, sender *peer.Peer, dests []peer.ID, payload string) error {
	resolved, err := b.Resolve(dests)
	if err != nil {
		return err
	}
	defer func() {
		for _, r := range resolved {
			r.Release()
		}
	}()

	sg, err := sender.Acquire()
	if err != nil {
		return err
	}
	defer sg.Release()

	queues := make([]*queue.Queue, len(resolved))
	for i, r := range resolved {
		queues[i] = r.Queue
	}
	_, err = sender.Ioctl(sg, peer.Send, peer.SendArg{
		Destinations: queues,
		Type:         queue.NodeMessage,
		Payload:      payload,
	})
	return err
}

func drainAndPrint(p *peer.Peer) {
	g, err := p.Acquire()
	if err != nil {
		return
	}
	defer g.Release()

	for {
		res, err := p.Ioctl(g, peer.Recv, nil)
		if err != nil {
			return
		}
		rr := res.(peer.RecvResult)
		if rr.Empty {
			return
		}
		fmt.Printf("peer %d received %v\n", p.ID, rr.Payload)
	}
}
