//go:build windows

package cmd

import (
	"os"

	"golang.org/x/sys/windows"
)

// gracefulSignals lists the signals that trigger a clean shutdown. Windows
// has no SIGTERM; os.Interrupt (CTRL_C_EVENT) is the only one delivered
// reliably.
func gracefulSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}

// processIsAlive reports whether the process has exited, by opening a
// query handle and reading its exit code.
func processIsAlive(proc *os.Process) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(proc.Pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(handle)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false
	}
	// 259 is STILL_ACTIVE.
	return exitCode == 259
}

// sendGracefulStop stops the process. With no SIGTERM equivalent, Kill
// (TerminateProcess) is the only option.
func sendGracefulStop(proc *os.Process) error {
	return proc.Kill()
}
