package job

import "syscall"

// groupAttr places the supervisor in a new process group led by itself, so
// one signal to the group reaches the supervisor and the compiler it runs.
func groupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
