// Package config loads SnapRAID's historic configuration-file grammar:
// a sequence of directives, one per line, such as
//
//	disk d1 /mnt/disk1
//	parity /mnt/parity/snapraid.parity
//	content /var/snapraid/content
//	blocksize 256
//	hash murmur3
//	exclude *.tmp
//
// This is the one ambient concern the teacher and the rest of the
// retrieval pack offer no library for -- see DESIGN.md -- so it is
// built directly on bufio/strings rather than an ecosystem config
// parser.
package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/snapraid-go/snapraid/hash"
)

// DiskEntry is one `disk NAME PATH` directive.
type DiskEntry struct {
	Name string
	Path string
}

// Config is the parsed content of a snapraid.conf-style file: the
// subset of directives the core (as opposed to the scanner/CLI layer)
// cares about -- which disks and parity files make up the array, where
// the content-file copies live, the block size, and the hash function.
type Config struct {
	Disks        []DiskEntry
	ParityFiles  [][]string // one slice per parity level, supporting split parity files
	ContentFiles []string
	BlockSizeKiB int
	Hash         hash.Function
	Excludes     []string
}

// Load parses r line by line. Blank lines and lines starting with '#'
// are ignored. An unrecognized directive name is a configuration error
// (spec.md #7: "malformed or contradictory config; aborts before any
// I/O").
func Load(r io.Reader) (*Config, error) {
	c := &Config{BlockSizeKiB: 256, Hash: hash.FunctionMurmur3}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		directive := fields[0]
		args := fields[1:]

		switch directive {
		case "disk":
			if len(args) != 2 {
				return nil, fmt.Errorf("config: line %d: 'disk' needs NAME PATH, got %v", lineNo, args)
			}
			c.Disks = append(c.Disks, DiskEntry{Name: args[0], Path: args[1]})
		case "parity", "2-parity", "3-parity", "4-parity", "5-parity", "6-parity", "z-parity":
			if len(args) == 0 {
				return nil, fmt.Errorf("config: line %d: '%s' needs at least one path", lineNo, directive)
			}
			c.ParityFiles = append(c.ParityFiles, args)
		case "content":
			if len(args) != 1 {
				return nil, fmt.Errorf("config: line %d: 'content' needs exactly one path", lineNo)
			}
			c.ContentFiles = append(c.ContentFiles, args[0])
		case "blocksize":
			if len(args) != 1 {
				return nil, fmt.Errorf("config: line %d: 'blocksize' needs exactly one value", lineNo)
			}
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("config: line %d: invalid blocksize %q", lineNo, args[0])
			}
			c.BlockSizeKiB = n
		case "hash":
			if len(args) != 1 {
				return nil, fmt.Errorf("config: line %d: 'hash' needs exactly one value", lineNo)
			}
			switch args[0] {
			case "murmur3":
				c.Hash = hash.FunctionMurmur3
			case "spooky2":
				c.Hash = hash.FunctionSpooky2
			default:
				return nil, fmt.Errorf("config: line %d: unknown hash function %q", lineNo, args[0])
			}
		case "exclude", "include", "nohidden":
			c.Excludes = append(c.Excludes, args...)
		default:
			return nil, fmt.Errorf("config: line %d: unrecognized directive %q", lineNo, directive)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// validate enforces the cross-directive invariants the original
// implementation checks before starting any I/O: at least one disk, at
// least one parity level, and at least one content-file copy (multiple
// copies are how spec.md #4.E's "any one of them suffices to load"
// guarantee has something to draw from).
func (c *Config) validate() error {
	if len(c.Disks) == 0 {
		return fmt.Errorf("config: at least one 'disk' directive is required")
	}
	if len(c.ParityFiles) == 0 {
		return fmt.Errorf("config: at least one parity level is required")
	}
	if len(c.ParityFiles) > 6 {
		return fmt.Errorf("config: at most 6 parity levels are supported, got %d", len(c.ParityFiles))
	}
	if len(c.ContentFiles) == 0 {
		return fmt.Errorf("config: at least one 'content' directive is required")
	}
	seen := map[string]bool{}
	for _, d := range c.Disks {
		if seen[d.Name] {
			return fmt.Errorf("config: disk name %q used more than once", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

// BlockSize returns the configured block size in bytes.
func (c *Config) BlockSize() int64 { return int64(c.BlockSizeKiB) * 1024 }
