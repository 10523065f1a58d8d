package vnet

import (
	"bytes"
	"fmt"

	"github.com/google/nftables"
	"github.com/google/nftables/expr"

	"github.com/vnet-lab/vnetman/pkg/util"
)

// Names of the nftables objects owned by vnetman. The table is dedicated
// so the isolation rules never collide with host firewall management.
const (
	isolationTable = "vnet-isolation"
	isolationChain = "output"
)

// NFTEnforcer maintains one egress-drop rule per switch bridge in a
// dedicated nftables inet table. Rules are only ever added: teardown and
// delete deliberately leave them in place, so isolation outlives interface
// churn and a re-created bridge is covered before its first packet.
type NFTEnforcer struct {
	conn *nftables.Conn
}

// NewNFTEnforcer opens a netlink connection to nftables.
func NewNFTEnforcer() (*NFTEnforcer, error) {
	conn, err := nftables.New()
	if err != nil {
		return nil, fmt.Errorf("vnet: open nftables: %w", err)
	}
	return &NFTEnforcer{conn: conn}, nil
}

// EnsureIsolation guarantees a drop rule for all traffic leaving ifname.
// The rule set is checked for an exact match first, so repeated calls
// never stack duplicate rules.
func (e *NFTEnforcer) EnsureIsolation(ifname string) error {
	table, chain, err := e.ensureChain()
	if err != nil {
		return err
	}

	rules, err := e.conn.GetRules(table, chain)
	if err != nil {
		return fmt.Errorf("vnet: list isolation rules: %w", err)
	}
	for _, rule := range rules {
		if ruleMatchesInterface(rule, ifname) {
			util.WithInterface(ifname).Debug("isolation rule already present, skipping creation")
			return nil
		}
	}

	util.WithInterface(ifname).Info("creating egress drop rule")
	e.conn.AddRule(&nftables.Rule{
		Table: table,
		Chain: chain,
		Exprs: []expr.Any{
			&expr.Meta{Key: expr.MetaKeyOIFNAME, Register: 1},
			&expr.Cmp{Op: expr.CmpOpEq, Register: 1, Data: ifname16(ifname)},
			&expr.Counter{},
			&expr.Verdict{Kind: expr.VerdictDrop},
		},
	})
	if err := e.conn.Flush(); err != nil {
		return fmt.Errorf("vnet: add isolation rule for %s: %w", ifname, err)
	}
	return nil
}

// ensureChain finds or creates the vnetman table and its output chain.
func (e *NFTEnforcer) ensureChain() (*nftables.Table, *nftables.Chain, error) {
	var table *nftables.Table
	tables, err := e.conn.ListTables()
	if err != nil {
		return nil, nil, fmt.Errorf("vnet: list nftables tables: %w", err)
	}
	for _, t := range tables {
		if t.Name == isolationTable && t.Family == nftables.TableFamilyINet {
			table = t
			break
		}
	}
	if table == nil {
		table = e.conn.AddTable(&nftables.Table{
			Name:   isolationTable,
			Family: nftables.TableFamilyINet,
		})
	}

	var chain *nftables.Chain
	chains, err := e.conn.ListChains()
	if err != nil {
		return nil, nil, fmt.Errorf("vnet: list nftables chains: %w", err)
	}
	for _, c := range chains {
		if c.Name == isolationChain && c.Table.Name == isolationTable && c.Table.Family == nftables.TableFamilyINet {
			chain = c
			break
		}
	}
	if chain == nil {
		chain = e.conn.AddChain(&nftables.Chain{
			Name:     isolationChain,
			Table:    table,
			Type:     nftables.ChainTypeFilter,
			Hooknum:  nftables.ChainHookOutput,
			Priority: nftables.ChainPriorityFilter,
		})
	}

	if err := e.conn.Flush(); err != nil {
		return nil, nil, fmt.Errorf("vnet: ensure isolation chain: %w", err)
	}
	return table, chain, nil
}

// ruleMatchesInterface reports whether a rule compares oifname against the
// given interface.
func ruleMatchesInterface(rule *nftables.Rule, ifname string) bool {
	want := ifname16(ifname)
	sawOifname := false
	for _, e := range rule.Exprs {
		switch ex := e.(type) {
		case *expr.Meta:
			if ex.Key == expr.MetaKeyOIFNAME {
				sawOifname = true
			}
		case *expr.Cmp:
			if sawOifname && bytes.Equal(ex.Data, want) {
				return true
			}
		}
	}
	return false
}

// ifname16 returns the null-padded IFNAMSIZ byte form nftables compares
// interface names against.
func ifname16(name string) []byte {
	b := make([]byte, 16)
	copy(b, name)
	return b
}
