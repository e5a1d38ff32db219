package config

import (
	"strings"
	"testing"

	"github.com/snapraid-go/snapraid/hash"
)

const sampleConf = `
# comment lines and blanks are ignored

disk d1 /mnt/disk1
disk d2 /mnt/disk2
parity /mnt/parity/snapraid.parity
2-parity /mnt/parity2/snapraid.2.parity
content /var/snapraid/content1
content /var/snapraid/content2
blocksize 128
hash spooky2
exclude *.tmp
exclude *.bak
`

func TestLoadParsesEveryDirective(t *testing.T) {
	c, err := Load(strings.NewReader(sampleConf))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Disks) != 2 || c.Disks[0].Name != "d1" || c.Disks[1].Path != "/mnt/disk2" {
		t.Fatalf("unexpected disks: %+v", c.Disks)
	}
	if len(c.ParityFiles) != 2 {
		t.Fatalf("ParityFiles = %+v, want 2 levels", c.ParityFiles)
	}
	if len(c.ContentFiles) != 2 {
		t.Fatalf("ContentFiles = %+v, want 2 copies", c.ContentFiles)
	}
	if c.BlockSizeKiB != 128 {
		t.Fatalf("BlockSizeKiB = %d, want 128", c.BlockSizeKiB)
	}
	if c.BlockSize() != 128*1024 {
		t.Fatalf("BlockSize() = %d, want %d", c.BlockSize(), 128*1024)
	}
	if c.Hash != hash.FunctionSpooky2 {
		t.Fatalf("Hash = %v, want FunctionSpooky2", c.Hash)
	}
	if len(c.Excludes) != 2 {
		t.Fatalf("Excludes = %+v, want 2 patterns", c.Excludes)
	}
}

func TestLoadDefaultsBlockSizeAndHash(t *testing.T) {
	const minimal = "disk d1 /mnt/disk1\nparity /mnt/parity\ncontent /var/content\n"
	c, err := Load(strings.NewReader(minimal))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BlockSizeKiB != 256 {
		t.Fatalf("default BlockSizeKiB = %d, want 256", c.BlockSizeKiB)
	}
	if c.Hash != hash.FunctionMurmur3 {
		t.Fatalf("default Hash = %v, want FunctionMurmur3", c.Hash)
	}
}

func TestLoadRejectsUnknownDirective(t *testing.T) {
	_, err := Load(strings.NewReader("bogus-directive foo\n"))
	if err == nil {
		t.Fatal("Load accepted an unrecognized directive")
	}
}

func TestLoadRejectsMissingDisk(t *testing.T) {
	const noDisk = "parity /mnt/parity\ncontent /var/content\n"
	if _, err := Load(strings.NewReader(noDisk)); err == nil {
		t.Fatal("Load accepted a config with no disk directive")
	}
}

func TestLoadRejectsDuplicateDiskName(t *testing.T) {
	const dup = "disk d1 /mnt/a\ndisk d1 /mnt/b\nparity /mnt/parity\ncontent /var/content\n"
	if _, err := Load(strings.NewReader(dup)); err == nil {
		t.Fatal("Load accepted two disks with the same name")
	}
}

func TestLoadRejectsTooManyParityLevels(t *testing.T) {
	var b strings.Builder
	b.WriteString("disk d1 /mnt/disk1\ncontent /var/content\n")
	for _, lvl := range []string{"parity", "2-parity", "3-parity", "4-parity", "5-parity", "6-parity", "z-parity"} {
		b.WriteString(lvl + " /mnt/p\n")
	}
	if _, err := Load(strings.NewReader(b.String())); err == nil {
		t.Fatal("Load accepted 7 parity levels")
	}
}
