// Package envfile turns the project's .env.example into a working .env.
//
// The file is edited line by line rather than decoded into a map, so
// comments, blank lines and key order survive exactly as the template
// has them. Only the values of the keys being set are rewritten.
package envfile

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/moby/sys/atomicwriter"

	"github.com/shinji-kodama/portal-setup/internal/layout"
)

// FileName is the environment file read by the portal at startup.
const FileName = ".env"

// Keys the materializer fills in.
const (
	KeyJWTSecret = "JWT_SECRET"
	KeyMongoURI  = "MONGODB_URI"
	KeyPort      = "PORT"
)

// secretBytes is the entropy of a generated JWT_SECRET (64 hex chars).
const secretBytes = 32

// .env holds credentials; keep it private to the owner.
const envMode os.FileMode = 0o600

// ErrExists is returned when .env is already present and Force is false.
var ErrExists = errors.New(".env already exists")

// Line is one line of an environment file. Key is empty for comments and
// blank lines, which are kept verbatim in Raw.
type Line struct {
	Raw   string
	Key   string
	Value string
}

// File is an ordered, comment-preserving environment file.
type File struct {
	Lines []Line
}

// Parse splits data into lines. "KEY=VALUE" and "export KEY=VALUE" are
// recognised as assignments; everything else is kept as-is. Values are
// not unquoted.
func Parse(data []byte) *File {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")

	f := &File{}
	if text == "" {
		return f
	}
	for _, raw := range strings.Split(text, "\n") {
		f.Lines = append(f.Lines, parseLine(raw))
	}
	return f
}

func parseLine(raw string) Line {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return Line{Raw: raw}
	}
	trimmed = strings.TrimPrefix(trimmed, "export ")

	key, value, ok := strings.Cut(trimmed, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" || strings.ContainsAny(key, " \t") {
		return Line{Raw: raw}
	}
	return Line{Raw: raw, Key: key, Value: strings.TrimSpace(value)}
}

// Get returns the value of the first assignment to key.
func (f *File) Get(key string) (string, bool) {
	for _, l := range f.Lines {
		if l.Key == key {
			return l.Value, true
		}
	}
	return "", false
}

// Keys returns the assigned keys in file order.
func (f *File) Keys() []string {
	var keys []string
	for _, l := range f.Lines {
		if l.Key != "" {
			keys = append(keys, l.Key)
		}
	}
	return keys
}

// Set assigns value to key. The first existing assignment is rewritten in
// place; a missing key is appended at the end of the file.
func (f *File) Set(key, value string) {
	for i, l := range f.Lines {
		if l.Key == key {
			f.Lines[i] = Line{Raw: key + "=" + value, Key: key, Value: value}
			return
		}
	}
	f.Lines = append(f.Lines, Line{Raw: key + "=" + value, Key: key, Value: value})
}

// Bytes renders the file with a trailing newline.
func (f *File) Bytes() []byte {
	var b strings.Builder
	for _, l := range f.Lines {
		b.WriteString(l.Raw)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// GenerateSecret returns a random hex string suitable for JWT_SECRET.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Options control Materialize.
type Options struct {
	// MongoURI replaces MONGODB_URI when non-empty.
	MongoURI string

	// Port replaces PORT when non-zero.
	Port int

	// Force allows an existing .env to be overwritten.
	Force bool

	// Secret is used as JWT_SECRET instead of a generated one.
	Secret string
}

// Result describes a Materialize run.
type Result struct {
	// Path is the absolute path of the written .env.
	Path string `json:"path"`

	// Source is the template the file was derived from: the project's
	// .env.example, or "built-in" when the project has none.
	Source string `json:"source"`

	// Set lists the keys whose values were filled in, in the order applied.
	Set []string `json:"set"`

	// Keys lists every key in the written file.
	Keys []string `json:"keys"`
}

// Materialize writes dir/.env from dir/.env.example, falling back to the
// built-in template when the project has no .env.example. JWT_SECRET always
// gets a fresh random value; MONGODB_URI and PORT are replaced when the
// corresponding option is set.
//
// An existing .env is left untouched and ErrExists returned unless
// opts.Force is set.
func Materialize(dir string, opts Options) (*Result, error) {
	target := filepath.Join(dir, FileName)
	if !opts.Force {
		if _, err := os.Lstat(target); err == nil {
			return nil, fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, target)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", target, err)
		}
	}

	source := layout.EnvExampleFile
	data, err := os.ReadFile(filepath.Join(dir, layout.EnvExampleFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
		source = "built-in"
		data = []byte(layout.EnvExample().Content)
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", layout.EnvExampleFile, err)
	}

	secret := opts.Secret
	if secret == "" {
		if secret, err = GenerateSecret(); err != nil {
			return nil, err
		}
	}

	f := Parse(data)
	result := &Result{Path: target, Source: source}

	f.Set(KeyJWTSecret, secret)
	result.Set = append(result.Set, KeyJWTSecret)
	if opts.MongoURI != "" {
		f.Set(KeyMongoURI, opts.MongoURI)
		result.Set = append(result.Set, KeyMongoURI)
	}
	if opts.Port != 0 {
		f.Set(KeyPort, strconv.Itoa(opts.Port))
		result.Set = append(result.Set, KeyPort)
	}
	result.Keys = f.Keys()

	if err := atomicwriter.WriteFile(target, f.Bytes(), envMode); err != nil {
		return nil, fmt.Errorf("write %s: %w", FileName, err)
	}
	return result, nil
}
