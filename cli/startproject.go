package cli

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/asaidimu/go-restful/utils"
	"github.com/spf13/cobra"
)

//go:embed templates/project
var projectTemplates embed.FS

var projectNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)

// projectFiles maps each template to its path inside the project.
var projectFiles = []struct {
	template string
	target   string
}{
	{"main.go.tmpl", "main.go"},
	{"api.go.tmpl", "api/api.go"},
	{"config.yaml.tmpl", "etc/{{.Name}}.yaml"},
	{"env.tmpl", ".env"},
	{"notes.up.sql.tmpl", "migrations/1_notes.up.sql"},
	{"notes.down.sql.tmpl", "migrations/1_notes.down.sql"},
}

// Project describes the skeleton written by StartProject.
type Project struct {
	Name   string
	Module string
}

// StartProject renders a project skeleton into dir/name. The target must not
// exist yet.
func StartProject(w io.Writer, p Project, dir string) (string, error) {
	if !projectNamePattern.MatchString(p.Name) {
		return "", fmt.Errorf("%q is not a valid project name", p.Name)
	}
	if p.Module == "" {
		p.Module = p.Name
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("'%s' is not a directory", dir)
	}
	workspace := filepath.Join(dir, p.Name)
	if _, err := os.Stat(workspace); err == nil {
		return "", fmt.Errorf("the directory '%s' already exists", workspace)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	for _, sub := range []string{"api", "etc/conf.d", "migrations"} {
		if err := os.MkdirAll(filepath.Join(workspace, sub), 0o755); err != nil {
			return "", err
		}
	}
	fmt.Fprintf(w, "  Creating directory %s ... done\n", workspace)

	tmpl, err := template.ParseFS(projectTemplates, "templates/project/*.tmpl")
	if err != nil {
		return "", err
	}
	for _, f := range projectFiles {
		target, err := render(f.target, p)
		if err != nil {
			return "", err
		}
		path := filepath.Join(workspace, target)
		out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			return "", err
		}
		err = tmpl.ExecuteTemplate(out, f.template, p)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return "", fmt.Errorf("failed to render %s: %w", target, err)
		}
		fmt.Fprintf(w, "  Generating %s ... done\n", target)
	}
	return workspace, nil
}

func render(text string, data any) (string, error) {
	t, err := template.New("path").Parse(text)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	if err := t.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}

func startprojectCommand() *cobra.Command {
	var (
		module string
		goMod  bool
	)
	cmd := &cobra.Command{
		Use:         "startproject <name> [dir]",
		Short:       "Create a project skeleton in dir (default the working directory)",
		Args:        cobra.RangeArgs(1, 2),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 2 {
				dir = args[1]
			}
			dir, err := filepath.Abs(dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			p := Project{Name: args[0], Module: module}
			workspace, err := StartProject(out, p, dir)
			if err != nil {
				return err
			}
			if !goMod {
				return nil
			}
			if p.Module == "" {
				p.Module = p.Name
			}
			script := fmt.Sprintf("cd %q && go mod init %q && go mod tidy", workspace, p.Module)
			code, stdout, stderr, err := utils.Execute(cmd.Context(), script, 5*time.Minute)
			if err != nil {
				return err
			}
			fmt.Fprint(out, stdout)
			if code != 0 {
				return fmt.Errorf("go mod init failed: %s", stderr)
			}
			fmt.Fprintln(out, "  Initializing go.mod ... done")
			return nil
		},
	}
	cmd.Flags().StringVar(&module, "module", "", "Go module path of the project (default the project name)")
	cmd.Flags().BoolVar(&goMod, "go-mod", false, "run go mod init and go mod tidy in the new project")
	return cmd
}
