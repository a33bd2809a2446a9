package validate

import (
	"context"
	"fmt"
	"strings"

	"github.com/n8nkit/n8nctl/engine/catalog"
	"github.com/n8nkit/n8nctl/engine/workflow"
	"github.com/n8nkit/n8nctl/pkg/logger"
)

// Options tunes a validation run.
type Options struct {
	Profile Profile
	Mode    Mode
}

// Validator runs structural and node-config validation backed by the node
// catalog.
type Validator struct {
	catalog *catalog.Catalog
}

// New builds a validator over the catalog.
func New(cat *catalog.Catalog) *Validator {
	return &Validator{catalog: cat}
}

// Validate checks the document and returns the collected issues. The
// presence of user-data problems is never an error return; only
// infrastructure failures (catalog access) raise.
func (v *Validator) Validate(ctx context.Context, doc *workflow.Document, opts Options) (*Result, error) {
	if opts.Profile == "" {
		opts.Profile = ProfileRuntime
	}
	if opts.Mode == "" {
		opts.Mode = ModeFull
	}
	log := logger.FromContext(ctx)
	w := doc.Workflow

	issues := checkStructure(doc)
	if opts.Mode != ModeMinimal {
		for i, n := range w.Nodes {
			nodeIssues, err := v.checkNodeConfig(ctx, w, n, i)
			if err != nil {
				return nil, fmt.Errorf("validate: node %q: %w", n.Name, err)
			}
			issues = append(issues, nodeIssues...)
			issues = append(issues, checkExpressions(n, i)...)
		}
		reverse := workflow.BuildReverseIndex(w)
		issues = append(issues, checkAITopology(w, reverse)...)
	}
	if opts.Profile == ProfileStrict {
		issues = append(issues, v.strictExtras(ctx, w)...)
	}

	issues = filterByProfile(issues, opts.Profile)
	attachSources(doc, issues)
	sortIssues(issues)

	result := &Result{Valid: true, Issues: issues}
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			result.Valid = false
			break
		}
	}
	log.Debug("validation finished",
		"profile", string(opts.Profile),
		"issues", len(issues),
		"valid", result.Valid)
	return result, nil
}

// strictExtras adds warnings on missing optional properties with no default
// and on nodes without notes.
func (v *Validator) strictExtras(ctx context.Context, w *workflow.Workflow) []Issue {
	var issues []Issue
	for i, n := range w.Nodes {
		def, err := v.catalog.Get(ctx, n.Type)
		if err != nil || def == nil {
			continue
		}
		for j := range def.Properties {
			prop := &def.Properties[j]
			if prop.Required || prop.Default != nil {
				continue
			}
			if !propertyActive(prop, n.Parameters, def) {
				continue
			}
			if _, present := n.Parameters[prop.Name]; !present {
				issues = append(issues, Issue{
					Code:     CodeMissingProperty,
					Severity: SeverityWarning,
					Message:  fmt.Sprintf("node %q leaves optional property %q unset with no default", n.Name, prop.Name),
					Location: Location{
						NodeName:  n.Name,
						NodeType:  n.Type,
						NodeIndex: intPtr(i),
						Path:      fmt.Sprintf("nodes[%d].parameters.%s", i, prop.Name),
					},
				})
			}
		}
		if strings.TrimSpace(n.Notes) == "" {
			issues = append(issues, Issue{
				Code:     CodeMissingProperty,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("node %q has no description note", n.Name),
				Location: Location{
					NodeName:  n.Name,
					NodeType:  n.Type,
					NodeIndex: intPtr(i),
					Path:      fmt.Sprintf("nodes[%d].notes", i),
				},
			})
		}
	}
	return issues
}

// attachSources resolves each issue's logical path to a source location and
// snippet when the raw text is available.
func attachSources(doc *workflow.Document, issues []Issue) {
	if len(doc.Raw) == 0 {
		return
	}
	locator := workflow.NewLocator(doc)
	for i := range issues {
		path := issues[i].Location.Path
		if path == "" {
			continue
		}
		loc := locator.Locate(path)
		if loc == nil {
			continue
		}
		issues[i].SourceLocation = loc
		issues[i].SourceSnippet = locator.Snippet(loc, 2)
	}
}
