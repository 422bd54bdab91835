package datasource

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vanderheijden86/rolepattern/pkg/model"
)

// SourceDiff represents differences between two element sets
type SourceDiff struct {
	SourceA string
	SourceB string
	// MissingInA holds element keys present in B but not in A
	MissingInA []string
	// MissingInB holds element keys present in A but not in B
	MissingInB []string
	// RoleMismatch holds elements whose roles differ between sources
	RoleMismatch []RoleDifference
	// VersionsDiffer is set when the version lists are not identical
	VersionsDiffer bool
	CountA         int
	CountB         int
}

// RoleDifference is a role mismatch for one element.
type RoleDifference struct {
	Key   string `json:"key"`
	RoleA string `json:"role_a"`
	RoleB string `json:"role_b"`
}

// HasInconsistencies returns true if there are any differences between sources
func (d SourceDiff) HasInconsistencies() bool {
	return len(d.MissingInA) > 0 || len(d.MissingInB) > 0 || len(d.RoleMismatch) > 0 || d.VersionsDiffer
}

// Summary returns a human-readable summary of the differences
func (d SourceDiff) Summary() string {
	if !d.HasInconsistencies() {
		return fmt.Sprintf("Sources match (%d elements each)", d.CountA)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Inconsistencies found between %s and %s:\n", d.SourceA, d.SourceB)
	if d.CountA != d.CountB {
		fmt.Fprintf(&b, "  - Count mismatch: %d vs %d\n", d.CountA, d.CountB)
	}
	if d.VersionsDiffer {
		b.WriteString("  - Version lists differ\n")
	}
	writeKeys := func(keys []string, in, notIn string) {
		if len(keys) == 0 {
			return
		}
		fmt.Fprintf(&b, "  - %d elements in %s but not %s\n", len(keys), in, notIn)
		if len(keys) <= 5 {
			for _, k := range keys {
				fmt.Fprintf(&b, "    - %s\n", k)
			}
		}
	}
	writeKeys(d.MissingInA, d.SourceB, d.SourceA)
	writeKeys(d.MissingInB, d.SourceA, d.SourceB)
	if len(d.RoleMismatch) > 0 {
		fmt.Fprintf(&b, "  - %d elements with different roles\n", len(d.RoleMismatch))
		if len(d.RoleMismatch) <= 5 {
			for _, m := range d.RoleMismatch {
				fmt.Fprintf(&b, "    - %s: %s vs %s\n", m.Key, m.RoleA, m.RoleB)
			}
		}
	}
	return b.String()
}

// elementKey identifies an element across sources: kind, version and ID.
func nodeKey(n model.Node) string { return "node:" + string(n.Version) + ":" + n.ID }
func edgeKey(e model.Edge) string { return "edge:" + string(e.Version) + ":" + e.ID }

func roleIndex(elems model.Elements) map[string]string {
	idx := make(map[string]string, elems.Len())
	for _, n := range elems.Nodes {
		idx[nodeKey(n)] = n.Role
	}
	for _, e := range elems.Edges {
		idx[edgeKey(e)] = e.SourceRole + ">" + e.TargetRole
	}
	return idx
}

// DetectInconsistencies compares two element sets. Keys are reported in
// sorted order so the output is stable.
func DetectInconsistencies(a, b model.Elements, versionsA, versionsB []model.Version, sourceA, sourceB string) SourceDiff {
	diff := SourceDiff{
		SourceA: sourceA,
		SourceB: sourceB,
		CountA:  a.Len(),
		CountB:  b.Len(),
	}

	mapA := roleIndex(a)
	mapB := roleIndex(b)
	for k, roleA := range mapA {
		roleB, ok := mapB[k]
		if !ok {
			diff.MissingInB = append(diff.MissingInB, k)
			continue
		}
		if roleA != roleB {
			diff.RoleMismatch = append(diff.RoleMismatch, RoleDifference{Key: k, RoleA: roleA, RoleB: roleB})
		}
	}
	for k := range mapB {
		if _, ok := mapA[k]; !ok {
			diff.MissingInA = append(diff.MissingInA, k)
		}
	}
	sort.Strings(diff.MissingInA)
	sort.Strings(diff.MissingInB)
	sort.Slice(diff.RoleMismatch, func(i, j int) bool { return diff.RoleMismatch[i].Key < diff.RoleMismatch[j].Key })

	if len(versionsA) != len(versionsB) {
		diff.VersionsDiffer = true
	} else {
		for i := range versionsA {
			if versionsA[i] != versionsB[i] {
				diff.VersionsDiffer = true
				break
			}
		}
	}
	return diff
}

// CompareSources loads both sources and diffs them.
func CompareSources(ctx context.Context, a, b Source, nameA, nameB string) (SourceDiff, error) {
	elemsA, err := a.Elements(ctx)
	if err != nil {
		return SourceDiff{}, fmt.Errorf("load %s: %w", nameA, err)
	}
	versA, err := a.Versions(ctx)
	if err != nil {
		return SourceDiff{}, fmt.Errorf("load %s versions: %w", nameA, err)
	}
	elemsB, err := b.Elements(ctx)
	if err != nil {
		return SourceDiff{}, fmt.Errorf("load %s: %w", nameB, err)
	}
	versB, err := b.Versions(ctx)
	if err != nil {
		return SourceDiff{}, fmt.Errorf("load %s versions: %w", nameB, err)
	}
	return DetectInconsistencies(elemsA, elemsB, versA, versB, nameA, nameB), nil
}
