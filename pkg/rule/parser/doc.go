// Package parser reads rule pack files into validated rule sets.
//
// A rule pack is a YAML (or JSON) document that carries one or more rule
// sets, each keyed by rule type and area. Packs are the file-system
// representation of stored rules: the file repository source loads them at
// startup and on change, and the lint command checks them in CI before
// they ship.
//
// # Basic Usage
//
// Parse a pack file:
//
//	p := parser.New()
//	pack, err := p.Parse("rules/doc-prep.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Loaded pack:", pack.Name)
//	fmt.Println("Rule sets:", len(pack.Sets))
//
// Parse from memory:
//
//	pack, err := p.ParseBytes(data, "memory://pack")
//
// Load every pack in a directory:
//
//	packs, err := p.ParseDir("rules")
//
// # Error Handling
//
// Syntax and file-level defects come back as a *PackError naming the
// offending file. Rule-level defects come back as the rule model's
// *rule.ErrorList, with one entry per broken rule, so a pack with several
// broken rules reports all of them at once and is rejected wholesale.
//
// # Parsing Stages
//
// Parsing happens in two stages: a strict YAML decode into the pack's
// wire structure (unknown fields are errors, catching typos like
// "opertor"), then rule set construction through the rule model's
// validating constructors. A pack that parses is therefore ready to
// evaluate; nothing is re-checked later.
package parser
