package dto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/horockey/tailgate/internal/model"
	"github.com/samber/lo"
)

// Status is the subset of the tailscaled LocalAPI status document
// the provider consumes.
type Status struct {
	Version        string                 `json:"Version"`
	BackendState   string                 `json:"BackendState"`
	MagicDNSSuffix string                 `json:"MagicDNSSuffix"`
	CurrentTailnet *TailnetStatus         `json:"CurrentTailnet"`
	Self           *PeerStatus            `json:"Self"`
	Peers          map[string]*PeerStatus `json:"Peer"`
}

type TailnetStatus struct {
	Name           string `json:"Name"`
	MagicDNSSuffix string `json:"MagicDNSSuffix"`
}

type PeerStatus struct {
	ID           string     `json:"ID"`
	PublicKey    string     `json:"PublicKey"`
	HostName     string     `json:"HostName"`
	DNSName      string     `json:"DNSName"`
	OS           string     `json:"OS"`
	TailscaleIPs []string   `json:"TailscaleIPs"`
	Tags         []string   `json:"Tags"`
	Online       *bool      `json:"Online"`
	ExitNode     bool       `json:"ExitNode"`
	Expired      *bool      `json:"Expired"`
	LastWrite    *time.Time `json:"LastWrite"`
	LastSeen     *time.Time `json:"LastSeen"`
}

// ToSnapshot normalizes the LocalAPI document into the domain snapshot:
// tags lose their tag: prefix, port advertisements are parsed, devices
// are sorted by stable ID and a content revision is derived.
func ToSnapshot(st Status) model.Snapshot {
	devices := make([]model.Device, 0, len(st.Peers))

	for _, peer := range st.Peers {
		if peer == nil {
			continue
		}
		devices = append(devices, peerToDevice(*peer))
	}

	slices.SortFunc(devices, func(a, b model.Device) int {
		return strings.Compare(a.ID, b.ID)
	})

	snap := model.Snapshot{
		Devices:        devices,
		MagicDNSSuffix: st.MagicDNSSuffix,
	}
	if st.CurrentTailnet != nil {
		snap.Tailnet = st.CurrentTailnet.Name
		if snap.MagicDNSSuffix == "" {
			snap.MagicDNSSuffix = st.CurrentTailnet.MagicDNSSuffix
		}
	}
	snap.Revision = revision(devices)

	return snap
}

func peerToDevice(peer PeerStatus) model.Device {
	tags := lo.Map(peer.Tags, func(t string, _ int) string {
		return model.NormalizeTag(t)
	})
	slices.Sort(tags)

	ports := []model.ServicePort{}
	for _, tag := range tags {
		if sp, ok := model.ParseServicePort(tag); ok {
			ports = append(ports, sp)
		}
	}

	dev := model.Device{
		ID:        peer.ID,
		Hostname:  peer.HostName,
		DNSName:   strings.TrimSuffix(peer.DNSName, "."),
		OS:        peer.OS,
		Tags:      tags,
		Addresses: slices.Clone(peer.TailscaleIPs),
		Online:    peer.Online != nil && *peer.Online,
		ExitNode:  peer.ExitNode,
		Expired:   peer.Expired != nil && *peer.Expired,
		Ports:     ports,
	}

	switch {
	case peer.LastWrite != nil && !peer.LastWrite.IsZero():
		dev.LastActivity = *peer.LastWrite
	case peer.LastSeen != nil && !peer.LastSeen.IsZero():
		dev.LastActivity = *peer.LastSeen
	}

	return dev
}

func revision(devices []model.Device) string {
	h := sha256.New()
	for _, dev := range devices {
		fmt.Fprintf(h, "%s|%s|%v|%t|%v\n", dev.ID, dev.Hostname, dev.Tags, dev.Online, dev.Addresses)
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}
