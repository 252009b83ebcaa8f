package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"recarchive/internal/mailaddr"
)

//go:embed schema.json
var schemaJSON []byte

// Validate checks cfg against the embedded schema and the rules the schema
// cannot express. It runs once at startup.
func Validate(cfg Config) error {
	doc, err := document(cfg)
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("config.json", bytes.NewReader(schemaJSON)); err != nil {
		return err
	}
	schema, err := compiler.Compile("config.json")
	if err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var problems []string
	if strings.EqualFold(cfg.Codec.SourceExt, cfg.Codec.TargetExt) {
		problems = append(problems, "codec.source_ext and codec.target_ext must differ")
	}
	if filepath.Clean(cfg.Paths.SourceRoot) == filepath.Clean(cfg.Paths.ArchiveRoot) {
		problems = append(problems, "paths.source_root and paths.archive_root must differ")
	}
	if cfg.Database.DSN == "" && cfg.Database.Name == "" {
		problems = append(problems, "database.dsn or database.name is required")
	}
	if _, _, _, err := mailaddr.Canonicalize(cfg.Mail.To); err != nil {
		problems = append(problems, fmt.Sprintf("mail.to: %v", err))
	}
	switch {
	case cfg.Mail.From != "":
		if _, _, _, err := mailaddr.Canonicalize(cfg.Mail.From); err != nil {
			problems = append(problems, fmt.Sprintf("mail.from: %v", err))
		}
	case cfg.Mail.FromDomain != "":
		if _, err := mailaddr.CanonicalizeDomain(cfg.Mail.FromDomain); err != nil {
			problems = append(problems, fmt.Sprintf("mail.from_domain: %v", err))
		}
	default:
		problems = append(problems, "mail.from or mail.from_domain is required")
	}
	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// document renders cfg the way it appears in a YAML file, decoded as JSON
// values so the schema sees the same keys and types.
func document(cfg Config) (any, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	js, err := json.Marshal(tree)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(js, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
