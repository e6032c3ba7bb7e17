package registry

import (
	"bytes"
	"fmt"
	"os"

	"github.com/ralt/apm/internal/models"
	"github.com/ralt/apm/internal/utils"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Store is the durable backing of a Registry
type Store interface {
	// Load returns every entry, categories in file order and aliases in
	// insertion order within each category
	Load() ([]models.AliasEntry, error)

	// Save replaces the stored entries in full
	Save(entries []models.AliasEntry) error
}

// FileStore keeps aliases in a YAML file shaped as
// category -> alias -> package_id.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the YAML file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

// Load parses the mapping file.
//
// Besides the plain form, two legacy shapes are accepted: an alias whose
// value is a mapping carrying package_id (or id), and a top-level
// "alias: package_id" pair, which loads with an empty category. A top-level
// mapping is always a category, even when it holds aliases named id or
// package_id.
func (s *FileStore) Load() ([]models.AliasEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", s.path, err)
	}

	// Empty file
	if doc.Kind == 0 || len(doc.Content) == 0 {
		logrus.Warnf("Package mappings file %s is empty", s.path)
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.ScalarNode && root.Tag == "!!null" {
		return nil, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s:%d: expected a mapping of categories", s.path, root.Line)
	}

	var entries []models.AliasEntry
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]

		switch value.Kind {
		case yaml.MappingNode:
			for j := 0; j+1 < len(value.Content); j += 2 {
				aliasNode, idNode := value.Content[j], value.Content[j+1]
				id, ok := packageIDOf(idNode)
				if !ok {
					logrus.Warnf("%s:%d: skipping alias %q in %q: unsupported value", s.path, idNode.Line, aliasNode.Value, key.Value)
					continue
				}
				entries = append(entries, models.AliasEntry{
					Alias:     aliasNode.Value,
					PackageID: id,
					Category:  key.Value,
				})
			}
		case yaml.ScalarNode:
			if value.Tag == "!!null" {
				// Category with no aliases yet
				continue
			}
			entries = append(entries, models.AliasEntry{Alias: key.Value, PackageID: value.Value})
		default:
			logrus.Warnf("%s:%d: skipping %q: unsupported value", s.path, value.Line, key.Value)
		}
	}

	return entries, nil
}

// packageIDOf extracts a package ID from either a scalar or a legacy
// mapping value
func packageIDOf(n *yaml.Node) (string, bool) {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" || n.Value == "" {
			return "", false
		}
		return n.Value, true
	case yaml.MappingNode:
		return legacyPackageID(n)
	}
	return "", false
}

func legacyPackageID(n *yaml.Node) (string, bool) {
	var fallback string
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if v.Kind != yaml.ScalarNode || v.Value == "" {
			continue
		}
		switch k.Value {
		case "package_id":
			return v.Value, true
		case "id":
			fallback = v.Value
		}
	}
	return fallback, fallback != ""
}

// Save rewrites the whole file atomically, preserving category grouping and
// the order entries were given in.
func (s *FileStore) Save(entries []models.AliasEntry) error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	categoryNodes := make(map[string]*yaml.Node)

	for _, e := range entries {
		if e.Category == "" {
			root.Content = append(root.Content, scalar(e.Alias), scalar(e.PackageID))
			continue
		}

		node, ok := categoryNodes[e.Category]
		if !ok {
			node = &yaml.Node{Kind: yaml.MappingNode}
			categoryNodes[e.Category] = node
			root.Content = append(root.Content, scalar(e.Category), node)
		}
		node.Content = append(node.Content, scalar(e.Alias), scalar(e.PackageID))
	}

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("marshaling mappings: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("marshaling mappings: %w", err)
	}

	if err := utils.WriteFileAtomic(s.path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	return nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
