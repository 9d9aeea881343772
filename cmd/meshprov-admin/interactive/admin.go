// Package interactive provides the readline command loop for
// meshprov-admin.
package interactive

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/meshprov/meshprov-go/pkg/composition"
	"github.com/meshprov/meshprov-go/pkg/mesh"
	"github.com/meshprov/meshprov-go/pkg/registry"
)

// Admin handles the interactive shell for meshprov-admin.
type Admin struct {
	store   *registry.Store
	deriver registry.KeyDeriver
	rl      *readline.Instance
}

// New creates a new interactive admin shell around store.
func New(store *registry.Store) (*Admin, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "meshprov> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Admin{
		store:   store,
		deriver: registry.NewLocalDeriver(),
		rl:      rl,
	}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
func (a *Admin) Stdout() io.Writer {
	return a.rl.Stdout()
}

// Run starts the command loop and blocks until exit or EOF.
func (a *Admin) Run() error {
	defer a.rl.Close()

	a.printHelp()

	for {
		line, err := a.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(a.rl.Stdout(), "Exiting...")
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			a.printHelp()

		case "nodes", "n":
			a.cmdNodes()

		case "node":
			a.cmdNode(args)

		case "netkey", "nk":
			a.cmdNetKey(args)

		case "appkey", "ak":
			a.cmdAppKey(args)

		case "bind":
			a.cmdBind(args)

		case "unbind":
			a.cmdUnbind(args)

		case "comp", "c":
			fmt.Fprint(a.rl.Stdout(), a.store.DescribeComposition())

		case "iv":
			a.cmdIV()

		case "reset-all":
			a.store.ResetAllNodes()
			fmt.Fprintln(a.rl.Stdout(), "all nodes reset")

		case "exit", "quit", "q":
			fmt.Fprintln(a.rl.Stdout(), "Exiting...")
			return nil

		default:
			fmt.Fprintf(a.rl.Stdout(), "unknown command %q (try 'help')\n", cmd)
		}
	}
}

func (a *Admin) printHelp() {
	fmt.Fprint(a.rl.Stdout(), `Commands:
  nodes                               list all nodes
  node add <unicast> <elems> [name]   admit a node
  node reset <index>                  free a node slot
  node name <index> <name>            rename a node
  node find <unicast>                 find the node owning an address
  netkey list                         list network keys
  netkey add [idx]                    add a network key (auto index if omitted)
  netkey del <idx>                    delete a network key and its app keys
  appkey list                         list application keys
  appkey add <netidx> [idx]           add an application key
  appkey del <netidx> <appidx>        delete an application key
  bind <elem> <model> <appidx> [cid]  bind an app key to a local model
  unbind <elem> <model> <appidx> [cid]
  comp                                show local elements and bindings
  iv                                  show IV index state
  reset-all                           reset every node
  help                                show this help
  exit                                quit

Numbers accept 0x-prefixed hex.
`)
}

func (a *Admin) cmdNodes() {
	nodes := a.store.Nodes()
	if len(nodes) == 0 {
		fmt.Fprintln(a.rl.Stdout(), "no nodes")
		return
	}

	indices := make([]int, 0, len(nodes))
	for i := range nodes {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	fmt.Fprintf(a.rl.Stdout(), "%d node(s), %d self-provisioned:\n",
		a.store.NodeCount(), a.store.ProvisionedNodeCount())
	for _, i := range indices {
		n := nodes[i]
		name := n.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(a.rl.Stdout(), "  [%2d] %s  elems: %d  net: %s  name: %s\n",
			i, n.UnicastAddr, n.ElementCount, n.NetIdx, name)
	}
}

func (a *Admin) cmdNode(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(a.rl.Stdout(), "usage: node add|reset|name|find ...")
		return
	}

	switch args[0] {
	case "add":
		if len(args) < 3 {
			fmt.Fprintln(a.rl.Stdout(), "usage: node add <unicast> <elems> [name]")
			return
		}
		unicast, err := parseUint16(args[1])
		if err != nil {
			fmt.Fprintf(a.rl.Stdout(), "bad unicast address: %v\n", err)
			return
		}
		elems, err := strconv.ParseUint(args[2], 0, 8)
		if err != nil {
			fmt.Fprintf(a.rl.Stdout(), "bad element count: %v\n", err)
			return
		}
		devKey, err := a.deriver.RandomKey()
		if err != nil {
			fmt.Fprintf(a.rl.Stdout(), "device key generation failed: %v\n", err)
			return
		}
		rec := registry.Node{
			UUID:         uuid.New(),
			UnicastAddr:  mesh.Address(unicast),
			ElementCount: uint8(elems),
			NetIdx:       mesh.KeyPrimary,
			DevKey:       devKey,
		}
		if len(args) > 3 {
			rec.Name = strings.Join(args[3:], " ")
		}
		idx, err := a.store.AddNodeChecked(rec, true)
		if err != nil {
			fmt.Fprintf(a.rl.Stdout(), "add failed: %v\n", err)
			return
		}
		fmt.Fprintf(a.rl.Stdout(), "node admitted at index %d (uuid %s)\n", idx, rec.UUID)

	case "reset":
		if len(args) != 2 {
			fmt.Fprintln(a.rl.Stdout(), "usage: node reset <index>")
			return
		}
		idx, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(a.rl.Stdout(), "bad index: %v\n", err)
			return
		}
		if err := a.store.ResetNode(idx); err != nil {
			fmt.Fprintf(a.rl.Stdout(), "reset failed: %v\n", err)
			return
		}
		fmt.Fprintf(a.rl.Stdout(), "node %d reset\n", idx)

	case "name":
		if len(args) < 3 {
			fmt.Fprintln(a.rl.Stdout(), "usage: node name <index> <name>")
			return
		}
		idx, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(a.rl.Stdout(), "bad index: %v\n", err)
			return
		}
		name := strings.Join(args[2:], " ")
		if err := a.store.SetNodeName(idx, name); err != nil {
			fmt.Fprintf(a.rl.Stdout(), "rename failed: %v\n", err)
			return
		}
		fmt.Fprintf(a.rl.Stdout(), "node %d named %q\n", idx, name)

	case "find":
		if len(args) != 2 {
			fmt.Fprintln(a.rl.Stdout(), "usage: node find <unicast>")
			return
		}
		addr, err := parseUint16(args[1])
		if err != nil {
			fmt.Fprintf(a.rl.Stdout(), "bad address: %v\n", err)
			return
		}
		n, err := a.store.NodeByUnicast(mesh.Address(addr))
		if err != nil {
			fmt.Fprintf(a.rl.Stdout(), "lookup failed: %v\n", err)
			return
		}
		fmt.Fprintf(a.rl.Stdout(), "node at %s  elems: %d  uuid: %s\n",
			n.UnicastAddr, n.ElementCount, n.UUID)

	default:
		fmt.Fprintln(a.rl.Stdout(), "usage: node add|reset|name|find ...")
	}
}

func (a *Admin) cmdNetKey(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(a.rl.Stdout(), "usage: netkey list|add|del ...")
		return
	}

	switch args[0] {
	case "list":
		subs := a.store.Subnets()
		if len(subs) == 0 {
			fmt.Fprintln(a.rl.Stdout(), "no network keys")
			return
		}
		for _, sub := range subs {
			fmt.Fprintf(a.rl.Stdout(), "  %s  kr: %v  phase: %d  nid: 0x%02x\n",
				sub.NetIdx, sub.KRFlag, sub.KRPhase, sub.ActiveKeys().NID)
		}

	case "add":
		idx := mesh.IndexAuto
		if len(args) > 1 {
			v, err := parseUint16(args[1])
			if err != nil {
				fmt.Fprintf(a.rl.Stdout(), "bad index: %v\n", err)
				return
			}
			idx = mesh.KeyIndex(v)
		}
		got, err := a.store.AddNetKey(nil, idx)
		if err != nil {
			fmt.Fprintf(a.rl.Stdout(), "add failed: %v\n", err)
			return
		}
		fmt.Fprintf(a.rl.Stdout(), "network key added at %s\n", got)

	case "del":
		if len(args) != 2 {
			fmt.Fprintln(a.rl.Stdout(), "usage: netkey del <idx>")
			return
		}
		v, err := parseUint16(args[1])
		if err != nil {
			fmt.Fprintf(a.rl.Stdout(), "bad index: %v\n", err)
			return
		}
		if err := a.store.DeleteNetKey(mesh.KeyIndex(v)); err != nil {
			fmt.Fprintf(a.rl.Stdout(), "delete failed: %v\n", err)
			return
		}
		fmt.Fprintf(a.rl.Stdout(), "network key %s deleted (app keys cascaded)\n", mesh.KeyIndex(v))

	default:
		fmt.Fprintln(a.rl.Stdout(), "usage: netkey list|add|del ...")
	}
}

func (a *Admin) cmdAppKey(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(a.rl.Stdout(), "usage: appkey list|add|del ...")
		return
	}

	switch args[0] {
	case "list":
		keys := a.store.AppKeys()
		if len(keys) == 0 {
			fmt.Fprintln(a.rl.Stdout(), "no application keys")
			return
		}
		for _, k := range keys {
			fmt.Fprintf(a.rl.Stdout(), "  %s (net %s)  updated: %v  aid: 0x%02x\n",
				k.AppIdx, k.NetIdx, k.Updated, k.ActiveKeys().AID)
		}

	case "add":
		if len(args) < 2 {
			fmt.Fprintln(a.rl.Stdout(), "usage: appkey add <netidx> [idx]")
			return
		}
		netIdx, err := parseUint16(args[1])
		if err != nil {
			fmt.Fprintf(a.rl.Stdout(), "bad net index: %v\n", err)
			return
		}
		idx := mesh.IndexAuto
		if len(args) > 2 {
			v, err := parseUint16(args[2])
			if err != nil {
				fmt.Fprintf(a.rl.Stdout(), "bad index: %v\n", err)
				return
			}
			idx = mesh.KeyIndex(v)
		}
		got, err := a.store.AddAppKey(nil, mesh.KeyIndex(netIdx), idx)
		if err != nil {
			fmt.Fprintf(a.rl.Stdout(), "add failed: %v\n", err)
			return
		}
		fmt.Fprintf(a.rl.Stdout(), "application key added at %s\n", got)

	case "del":
		if len(args) != 3 {
			fmt.Fprintln(a.rl.Stdout(), "usage: appkey del <netidx> <appidx>")
			return
		}
		netIdx, err := parseUint16(args[1])
		if err != nil {
			fmt.Fprintf(a.rl.Stdout(), "bad net index: %v\n", err)
			return
		}
		appIdx, err := parseUint16(args[2])
		if err != nil {
			fmt.Fprintf(a.rl.Stdout(), "bad app index: %v\n", err)
			return
		}
		if err := a.store.DeleteAppKey(mesh.KeyIndex(netIdx), mesh.KeyIndex(appIdx)); err != nil {
			fmt.Fprintf(a.rl.Stdout(), "delete failed: %v\n", err)
			return
		}
		fmt.Fprintf(a.rl.Stdout(), "application key %s deleted\n", mesh.KeyIndex(appIdx))

	default:
		fmt.Fprintln(a.rl.Stdout(), "usage: appkey list|add|del ...")
	}
}

func (a *Admin) cmdBind(args []string) {
	elemAddr, modelID, appIdx, company, ok := a.parseBindArgs(args)
	if !ok {
		return
	}

	if err := a.store.BindModel(elemAddr, company, modelID, appIdx); err != nil {
		fmt.Fprintf(a.rl.Stdout(), "bind failed: %v\n", err)
		return
	}
	fmt.Fprintf(a.rl.Stdout(), "app key %s bound to model 0x%04x\n", appIdx, modelID)
}

func (a *Admin) cmdUnbind(args []string) {
	elemAddr, modelID, appIdx, company, ok := a.parseBindArgs(args)
	if !ok {
		return
	}

	if err := a.store.UnbindModel(elemAddr, company, modelID, appIdx); err != nil {
		fmt.Fprintf(a.rl.Stdout(), "unbind failed: %v\n", err)
		return
	}
	fmt.Fprintf(a.rl.Stdout(), "app key %s unbound from model 0x%04x\n", appIdx, modelID)
}

func (a *Admin) parseBindArgs(args []string) (mesh.Address, uint16, mesh.KeyIndex, uint16, bool) {
	if len(args) < 3 {
		fmt.Fprintln(a.rl.Stdout(), "usage: bind <elem> <model> <appidx> [cid]")
		return 0, 0, 0, 0, false
	}
	elemAddr, err := parseUint16(args[0])
	if err != nil {
		fmt.Fprintf(a.rl.Stdout(), "bad element address: %v\n", err)
		return 0, 0, 0, 0, false
	}
	modelID, err := parseUint16(args[1])
	if err != nil {
		fmt.Fprintf(a.rl.Stdout(), "bad model id: %v\n", err)
		return 0, 0, 0, 0, false
	}
	appIdx, err := parseUint16(args[2])
	if err != nil {
		fmt.Fprintf(a.rl.Stdout(), "bad app index: %v\n", err)
		return 0, 0, 0, 0, false
	}
	company := composition.CompanyNone
	if len(args) > 3 {
		v, err := parseUint16(args[3])
		if err != nil {
			fmt.Fprintf(a.rl.Stdout(), "bad company id: %v\n", err)
			return 0, 0, 0, 0, false
		}
		company = v
	}
	return mesh.Address(elemAddr), modelID, mesh.KeyIndex(appIdx), company, true
}

func (a *Admin) cmdIV() {
	iv, update := a.store.IVIndex()
	fmt.Fprintf(a.rl.Stdout(), "iv index: %d  update in progress: %v\n", iv, update)
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
