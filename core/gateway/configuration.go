// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/relabs-tech/modelgate/core/access"
	"github.com/relabs-tech/modelgate/core/logger"
	"github.com/relabs-tech/modelgate/core/policy"
	"github.com/relabs-tech/modelgate/core/schema"
)

// Configuration holds a complete gateway configuration
type Configuration struct {
	EntityTypes []EntityTypeConfiguration `json:"entity_types"`
	Policies    []policy.Entry            `json:"policies"`
	Schemas     []json.RawMessage         `json:"schemas"`
	Refs        []json.RawMessage         `json:"refs"`
	Identities  []IdentityConfiguration   `json:"identities"`
}

// EntityTypeConfiguration describes an entity type served by the store
type EntityTypeConfiguration struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SchemaID    string `json:"schema_id"`
}

// IdentityConfiguration is an identity which is created at startup if it does not exist yet.
// Either Password or PasswordHash (bcrypt) must be set.
type IdentityConfiguration struct {
	Login        string `json:"login"`
	Name         string `json:"name"`
	Password     string `json:"password"`
	PasswordHash string `json:"password_hash"`
}

// ParseConfiguration parses and checks a JSON configuration
func ParseConfiguration(data []byte) (*Configuration, error) {
	var config Configuration
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse error in gateway configuration: %w", err)
	}

	known := map[string]bool{}
	for _, et := range config.EntityTypes {
		if strings.TrimSpace(et.Name) == "" {
			return nil, errors.New("entity type without name")
		}
		if known[et.Name] {
			return nil, fmt.Errorf("entity type %s declared twice", et.Name)
		}
		known[et.Name] = true
	}
	for _, p := range config.Policies {
		if !known[p.Model] {
			return nil, fmt.Errorf("policy for undeclared entity type %s", p.Model)
		}
	}
	for _, id := range config.Identities {
		if strings.TrimSpace(id.Login) == "" {
			return nil, errors.New("identity without login")
		}
		if id.Password == "" && id.PasswordHash == "" {
			return nil, fmt.Errorf("identity %s has neither password nor password_hash", id.Login)
		}
	}
	return &config, nil
}

// Models returns the names of the declared entity types in ascending order
func (c *Configuration) Models() []string {
	models := make([]string, 0, len(c.EntityTypes))
	for _, et := range c.EntityTypes {
		models = append(models, et.Name)
	}
	sort.Strings(models)
	return models
}

// SchemaIDs maps entity type names to their schema id. Entity types without a schema are omitted.
func (c *Configuration) SchemaIDs() map[string]string {
	ids := map[string]string{}
	for _, et := range c.EntityTypes {
		if et.SchemaID != "" {
			ids[et.Name] = et.SchemaID
		}
	}
	return ids
}

// Validator compiles the configured schemas. It returns nil if there are none.
func (c *Configuration) Validator() (*schema.Validator, error) {
	if len(c.Schemas) == 0 {
		return nil, nil
	}
	toStrings := func(raw []json.RawMessage) []string {
		res := make([]string, len(raw))
		for i := range raw {
			res[i] = string(raw[i])
		}
		return res
	}
	validator, err := schema.NewValidator(toStrings(c.Schemas), toStrings(c.Refs))
	if err != nil {
		return nil, err
	}
	for _, et := range c.EntityTypes {
		if et.SchemaID != "" && !validator.HasSchema(et.SchemaID) {
			return nil, fmt.Errorf("entity type %s refers to unknown schema %s", et.Name, et.SchemaID)
		}
	}
	return validator, nil
}

// Seed writes the configured policies to the table, replacing existing entries for the same
// entity types, and registers the configured identities. Identities that already exist are
// left untouched.
func (c *Configuration) Seed(ctx context.Context, policies policy.AdminTable, credentials access.Store) error {
	rlog := logger.FromContext(ctx)
	for _, p := range c.Policies {
		if err := policies.Put(ctx, p); err != nil {
			return fmt.Errorf("cannot seed policy for %s: %w", p.Model, err)
		}
		rlog.Debugf("seeded policy for %s: %v", p.Model, p.Methods())
	}

	for _, id := range c.Identities {
		var err error
		if id.PasswordHash != "" {
			name := id.Name
			if name == "" {
				name = id.Login
			}
			err = credentials.Register(ctx, access.Identity{Login: id.Login, Name: name}, id.PasswordHash)
		} else {
			_, err = access.CreateIdentity(ctx, credentials, id.Login, id.Name, id.Password)
		}
		if errors.Is(err, access.ErrIdentityExists) {
			rlog.Debugln("identity exists already:", id.Login)
			continue
		}
		if err != nil {
			return fmt.Errorf("cannot seed identity %s: %w", id.Login, err)
		}
		rlog.Infoln("seeded identity", id.Login)
	}
	return nil
}
