package vnet

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/prometheus/procfs"

	"github.com/vnet-lab/vnetman/pkg/util"
)

// captureTool is the capture binary both spawned and matched against the
// process table.
const captureTool = "tcpdump"

// TcpdumpSupervisor ensures a tcpdump process per interface. Spawned
// processes are detached (own process group) and never tracked: whether a
// capture is running is re-derived by scanning /proc on every query, so no
// PID bookkeeping can go stale. If a capture dies later, nothing here
// notices until the next Ensure call restarts it.
type TcpdumpSupervisor struct {
	// Dir is where pcap files are written, one <interface>.pcap each.
	Dir string
}

// Running reports whether a tcpdump process for ifname is present in the
// live process table. A process matches when its argument list contains
// both the capture tool and the interface name as exact tokens.
func (s *TcpdumpSupervisor) Running(ifname string) (bool, error) {
	procs, err := procfs.AllProcs()
	if err != nil {
		return false, fmt.Errorf("vnet: scan process table: %w", err)
	}
	for _, p := range procs {
		args, err := p.CmdLine()
		if err != nil {
			// Process exited between listing and reading; not our problem.
			continue
		}
		if hasCmdToken(args, captureTool) && hasArg(args, ifname) {
			util.WithInterface(ifname).Debugf("capture already running (pid %d)", p.PID)
			return true, nil
		}
	}
	return false, nil
}

// Ensure starts a detached capture on ifname unless one is already
// running. The process is fire-and-forget: no exit code, no restart.
func (s *TcpdumpSupervisor) Ensure(ifname string) error {
	running, err := s.Running(ifname)
	if err != nil {
		return err
	}
	if running {
		return nil
	}

	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("vnet: create capture dir: %w", err)
	}
	path := filepath.Join(s.Dir, ifname+".pcap")
	util.WithInterface(ifname).Infof("starting capture, pcap location: %s", path)

	cmd := exec.Command(captureTool, "-i", ifname, "-U", "-w", path)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("vnet: start capture on %s: %w", ifname, err)
	}

	// Reap the child if it ever exits, so it cannot linger as a zombie.
	go cmd.Wait()

	return nil
}

// hasCmdToken reports whether any argument names the tool, either bare or
// as a path.
func hasCmdToken(args []string, tool string) bool {
	for _, a := range args {
		if a == tool || filepath.Base(a) == tool {
			return true
		}
	}
	return false
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}
