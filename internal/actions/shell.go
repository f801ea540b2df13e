package actions

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/orbyt/workflow-engine/internal/registry"
)

// ShellHandler implements `shell.exec` and `shell.script`, adapted from the
// teacher's command plugin (internal/plugins/command): resolve a shell,
// build its environment, run the command, and capture its output. Unlike
// the teacher's plugin it never tees to the host process's own stdout/stderr
// — concurrent steps within a phase would interleave — it only returns
// captured output in the Result.
type ShellHandler struct{}

var _ registry.ActionHandler = ShellHandler{}

func (ShellHandler) Name() string    { return "shell" }
func (ShellHandler) Version() string { return "1.0.0" }

func (ShellHandler) SupportedActions() []string {
	return []string{"shell.exec", "shell.script"}
}

func (ShellHandler) Capabilities() registry.Capabilities {
	return registry.Capabilities{Concurrent: true, Cacheable: false, Idempotent: false, Cost: 2}
}

func (ShellHandler) Execute(ctx context.Context, action string, input map[string]interface{}, actionCtx registry.ActionContext) (registry.Result, error) {
	command, ok := input["command"].(string)
	if !ok || strings.TrimSpace(command) == "" {
		return registry.Result{}, &registry.ActionError{Message: fmt.Sprintf("%s requires a non-empty 'command' input", action), Code: "shell.invalid_input"}
	}

	shellPath, shellArgs, err := resolveShell(toString(input["shell"]))
	if err != nil {
		return registry.Result{}, &registry.ActionError{Message: err.Error(), Code: "shell.no_shell"}
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, shellPath, append(shellArgs, command)...)
	cmd.Env = buildEnv(actionCtx.Env)
	if actionCtx.Cwd != "" {
		cmd.Dir = actionCtx.Cwd
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	elapsed := time.Since(start)

	metrics := &registry.Metrics{DurationMs: elapsed.Milliseconds()}
	logs := splitLogs(stdout.String(), stderr.String())

	if runErr != nil {
		msg := runErr.Error()
		if stderr.Len() > 0 {
			msg = fmt.Sprintf("%s: %s", msg, strings.TrimSpace(stderr.String()))
		}
		return registry.Result{
			Success: false,
			Output:  map[string]interface{}{"stdout": stdout.String(), "stderr": stderr.String()},
			Error:   &registry.ActionError{Message: msg, Code: "shell.exit_error"},
			Metrics: metrics,
			Logs:    logs,
		}, nil
	}

	return registry.Result{
		Success: true,
		Output:  map[string]interface{}{"stdout": strings.TrimSpace(stdout.String()), "stderr": strings.TrimSpace(stderr.String())},
		Metrics: metrics,
		Logs:    logs,
		Effects: []string{"process:" + shellPath},
	}, nil
}

// resolveShell mirrors determineShell from the teacher's command plugin: an
// explicit shell wins, otherwise prefer bash, fall back to sh, and on
// windows fall back to cmd.
func resolveShell(explicit string) (string, []string, error) {
	if explicit != "" {
		return explicit, []string{"-c"}, nil
	}
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C"}, nil
	}
	if path, err := exec.LookPath("bash"); err == nil {
		return path, []string{"-c"}, nil
	}
	if path, err := exec.LookPath("sh"); err == nil {
		return path, []string{"-c"}, nil
	}
	return "", nil, fmt.Errorf("no suitable shell found")
}

func buildEnv(custom map[string]string) []string {
	env := os.Environ()
	for k, v := range custom {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

func splitLogs(stdout, stderr string) []string {
	var logs []string
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		if line != "" {
			logs = append(logs, line)
		}
	}
	for _, line := range strings.Split(strings.TrimSpace(stderr), "\n") {
		if line != "" {
			logs = append(logs, line)
		}
	}
	return logs
}

func toString(v interface{}) string {
	s, _ := v.(string)
	return s
}
