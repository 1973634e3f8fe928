package crate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	// MetadataBasename is the name of the metadata file inside a crate
	// directory.
	MetadataBasename = "ro-crate-metadata.json"

	// LegacyMetadataBasename is the metadata file name used by older crates.
	LegacyMetadataBasename = "ro-crate-metadata.jsonld"

	// Profile identifies the metadata profile new crates conform to.
	Profile = "https://w3id.org/ro/crate/1.1"

	// DefaultContext is the @context of newly created crates.
	DefaultContext = Profile + "/context"

	// RootID identifies the root data entity.
	RootID = "./"
)

// Marshal renders the crate as metadata document bytes: the public graph
// plus, when sensitive entities exist, the @encrypted section. Marshal
// fails rather than write sensitive properties in the clear.
func (c *Crate) Marshal(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc := map[string]any{
		"@context": c.jsonldContext,
		"@graph":   c.graphObjects(),
	}
	section, err := c.buildEncryptedSection(ctx)
	if err != nil {
		return nil, err
	}
	if section != nil {
		doc["@encrypted"] = []any{section}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}
	return append(data, '\n'), nil
}

func (c *Crate) graphObjects() []map[string]any {
	objs := make([]map[string]any, 0, len(c.order))
	for _, e := range c.Entities() {
		objs = append(objs, e.object())
	}
	return objs
}

// Write renders the crate and writes the metadata file into dir.
func (c *Crate) Write(ctx context.Context, dir string) error {
	data, err := c.Marshal(ctx)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, MetadataBasename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing metadata file: %w", err)
	}
	return nil
}

// Read loads a crate from source, which may be a crate directory or the
// path of a metadata file.
func Read(ctx context.Context, source string, opts ...Option) (*Crate, error) {
	path, err := resolveMetadataPath(source)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata file: %w", err)
	}
	return Parse(ctx, data, opts...)
}

func resolveMetadataPath(source string) (string, error) {
	info, err := os.Stat(source)
	if err != nil {
		return "", fmt.Errorf("resolving crate source: %w", err)
	}
	if !info.IsDir() {
		return source, nil
	}
	for _, name := range []string{MetadataBasename, LegacyMetadataBasename} {
		path := filepath.Join(source, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%s: %w", source, ErrNoMetadataFile)
}

// Parse builds a crate from metadata document bytes. The document must
// carry @context and @graph members and a valid metadata file descriptor.
// Encrypted blocks are recovered through the configured codec; those that
// cannot be opened are discarded.
func Parse(ctx context.Context, data []byte, opts ...Option) (*Crate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	jsonldContext, ok := doc["@context"]
	if !ok {
		return nil, fmt.Errorf("%w: missing @context", ErrInvalidMetadata)
	}
	rawGraph, ok := doc["@graph"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing @graph", ErrInvalidMetadata)
	}

	entities := make([]*Entity, 0, len(rawGraph))
	objects := make(map[string]map[string]any, len(rawGraph))
	for _, item := range rawGraph {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: @graph entries must be objects", ErrInvalidMetadata)
		}
		e, err := entityFromObject(obj)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
		objects[e.ID] = obj
	}

	if _, _, err := findRootEntity(objects); err != nil {
		return nil, err
	}

	c := newBare(opts...)
	c.jsonldContext = jsonldContext
	for _, e := range entities {
		c.Add(e)
	}
	c.mergeEncryptedSection(ctx, doc["@encrypted"])
	return c, nil
}

// findRootEntity locates the metadata file descriptor and the root data
// entity it points at. The descriptor is normally registered under its
// basename; descriptors filed under longer paths are accepted as a
// fallback, preferring the one whose root lists the others among its parts.
func findRootEntity(objects map[string]map[string]any) (descriptorID, rootID string, err error) {
	for _, name := range []string{MetadataBasename, LegacyMetadataBasename} {
		if desc, ok := objects[name]; ok {
			return checkDescriptor(desc, objects)
		}
	}

	ids := make([]string, 0, len(objects))
	for id := range objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	type pair struct{ descriptor, root string }
	var candidates []pair
	for _, id := range ids {
		base := id[strings.LastIndex(id, "/")+1:]
		if base != MetadataBasename && base != LegacyMetadataBasename {
			continue
		}
		d, r, err := checkDescriptor(objects[id], objects)
		if err != nil {
			continue
		}
		candidates = append(candidates, pair{descriptor: d, root: r})
	}
	switch len(candidates) {
	case 0:
		return "", "", ErrNoDescriptor
	case 1:
		return candidates[0].descriptor, candidates[0].root, nil
	}

	descriptorIDs := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		descriptorIDs = append(descriptorIDs, cand.descriptor)
	}
	for _, cand := range candidates {
		root, ok := objects[cand.root]
		if !ok {
			continue
		}
		parts := make(map[string]bool)
		for _, id := range refIDs(root["hasPart"]) {
			parts[id] = true
		}
		if len(parts) == 0 {
			continue
		}
		containsAll := true
		for _, id := range descriptorIDs {
			if id != cand.descriptor && !parts[id] {
				containsAll = false
				break
			}
		}
		if containsAll {
			return cand.descriptor, cand.root, nil
		}
	}
	return candidates[0].descriptor, candidates[0].root, nil
}

// checkDescriptor validates one descriptor entity: it must be a plain
// CreativeWork whose about reference resolves to an entity with Dataset
// among its types.
func checkDescriptor(descriptor map[string]any, objects map[string]map[string]any) (string, string, error) {
	if t, ok := descriptor["@type"].(string); !ok || t != "CreativeWork" {
		return "", "", fmt.Errorf(`%w: descriptor must be of type "CreativeWork"`, ErrInvalidDescriptor)
	}
	about, ok := descriptor["about"].(map[string]any)
	if !ok {
		return "", "", fmt.Errorf("%w: descriptor does not reference the root entity", ErrInvalidDescriptor)
	}
	rootID, ok := about["@id"].(string)
	if !ok {
		return "", "", fmt.Errorf("%w: descriptor does not reference the root entity", ErrInvalidDescriptor)
	}
	root, ok := objects[rootID]
	if !ok {
		return "", "", fmt.Errorf("%w: descriptor references %s which is not in the graph", ErrInvalidDescriptor, rootID)
	}
	if !hasDatasetType(root["@type"]) {
		return "", "", fmt.Errorf(`%w: root entity %s must have "Dataset" among its types`, ErrInvalidDescriptor, rootID)
	}
	descID, ok := descriptor["@id"].(string)
	if !ok {
		return "", "", fmt.Errorf("%w: descriptor has no identifier", ErrInvalidDescriptor)
	}
	return descID, rootID, nil
}

func hasDatasetType(value any) bool {
	for _, t := range stringValues(value) {
		if t == "Dataset" {
			return true
		}
	}
	return false
}
