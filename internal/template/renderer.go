// internal/template/renderer.go
//
// Token-substitution renderer for provisioning artifacts.
//
// Context
// -------
// Config bodies (nginx vhosts, sudoers files, crontabs, welcome emails) are
// plain text with `$NAME` tokens.  Substitution is literal, non-nested
// key/value replacement; this is deliberately not a template language, so
// the variable-injection semantics stay exactly as narrow as the artifacts
// need.  All tokens carry the `$` sentinel prefix to avoid accidental
// substring collisions.
//
// Writes honor the execution policy: pretend still reads and renders (so a
// broken template surfaces during a dry run) but never touches the
// destination; force downgrades open failures to log lines.
package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/aspc/piccolo/internal/shell"
)

// Renderer resolves template names against a root directory.
type Renderer struct {
	root   string
	policy shell.Policy
	log    *zap.SugaredLogger
}

func New(root string, policy shell.Policy, log *zap.SugaredLogger) *Renderer {
	return &Renderer{root: root, policy: policy, log: log}
}

// Render substitutes every `$NAME` key of vars in text.  Pure function; the
// orchestrators use it directly for email bodies.  Longer tokens substitute
// first so `$DB_USERNAME` never clobbers `$DB_USERNAME_MYSQL`.
func Render(text string, vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		text = strings.ReplaceAll(text, k, vars[k])
	}
	return text
}

// RenderTemplate reads the named template under the renderer root and
// returns its rendered text.
func (r *Renderer) RenderTemplate(name string, vars map[string]string) (string, error) {
	raw, err := os.ReadFile(r.path(name))
	if err != nil {
		return "", fmt.Errorf("read template %s: %w", name, err)
	}
	return Render(string(raw), vars), nil
}

// CopyFile renders the named template to dst, overwriting it.
func (r *Renderer) CopyFile(name, dst string, vars map[string]string) error {
	return r.write(name, dst, vars, false)
}

// AppendFile renders the named template and appends it to dst.
func (r *Renderer) AppendFile(name, dst string, vars map[string]string) error {
	return r.write(name, dst, vars, true)
}

func (r *Renderer) write(name, dst string, vars map[string]string, appendMode bool) error {
	r.log.Infow("rendering template", "template", name, "dest", dst, "append", appendMode)
	text, err := r.RenderTemplate(name, vars)
	if err != nil {
		return r.skipOrFail(err)
	}
	if r.policy.Pretend {
		return nil
	}
	flags := os.O_WRONLY | os.O_CREATE
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	out, err := os.OpenFile(dst, flags, 0o644)
	if err != nil {
		return r.skipOrFail(err)
	}
	defer out.Close()
	if _, err := out.WriteString(text); err != nil {
		return r.skipOrFail(err)
	}
	return nil
}

// RewriteInPlace substitutes vars in an already-materialized file, as the
// site-template tree pass does after `cp -R`.
func (r *Renderer) RewriteInPlace(path string, vars map[string]string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return r.skipOrFail(err)
	}
	if r.policy.Pretend {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return r.skipOrFail(err)
	}
	if err := os.WriteFile(path, []byte(Render(string(raw), vars)), info.Mode().Perm()); err != nil {
		return r.skipOrFail(err)
	}
	return nil
}

func (r *Renderer) skipOrFail(err error) error {
	if r.policy.Force {
		r.log.Errorw("template action skipped under force", "err", err)
		return nil
	}
	return err
}

func (r *Renderer) path(name string) string {
	return filepath.Join(r.root, name)
}
