package store

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---\n"

// artifactHeader is the YAML frontmatter at the top of every artifact file.
type artifactHeader struct {
	Title     string            `yaml:"title,omitempty"`
	Tags      map[string]string `yaml:"tags,omitempty"`
	CreatedAt time.Time         `yaml:"created_at"`
}

func encodeArtifact(title, content string, tags map[string]string) ([]byte, error) {
	header := artifactHeader{
		Title:     title,
		Tags:      tags,
		CreatedAt: touchTimestamp(),
	}
	meta, err := yaml.Marshal(&header)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifact metadata: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim)
	buf.Write(meta)
	buf.WriteString(frontmatterDelim)
	buf.WriteString("\n")
	buf.WriteString(content)
	if len(content) > 0 && content[len(content)-1] != '\n' {
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// decodeArtifact splits frontmatter from content. Files without a
// frontmatter block decode as all-content with empty metadata, so
// hand-written artifacts still load.
func decodeArtifact(data []byte) (string, map[string]string, error) {
	raw := string(data)
	if !bytes.HasPrefix(data, []byte(frontmatterDelim)) {
		return raw, map[string]string{}, nil
	}

	rest := raw[len(frontmatterDelim):]
	end := indexDelim(rest)
	if end < 0 {
		return raw, map[string]string{}, nil
	}

	var header artifactHeader
	if err := yaml.Unmarshal([]byte(rest[:end]), &header); err != nil {
		return "", nil, fmt.Errorf("artifact frontmatter is corrupt: %w", err)
	}

	content := rest[end+len(frontmatterDelim):]
	// Drop the blank separator line encodeArtifact inserts.
	if len(content) > 0 && content[0] == '\n' {
		content = content[1:]
	}

	tags := header.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	return content, tags, nil
}

// indexDelim finds the closing frontmatter delimiter at a line start.
func indexDelim(s string) int {
	if len(s) >= len(frontmatterDelim) && s[:len(frontmatterDelim)] == frontmatterDelim {
		return 0
	}
	idx := bytes.Index([]byte(s), []byte("\n"+frontmatterDelim))
	if idx < 0 {
		return -1
	}
	return idx + 1
}
