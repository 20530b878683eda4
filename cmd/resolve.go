package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/adder/internal/shared"
	"github.com/urfave/cli/v3"
)

// resolvedCandidate is one scored search result in the resolve output.
type resolvedCandidate struct {
	Rank    int     `json:"rank"`
	Name    string  `json:"name"`
	Artists string  `json:"artists"`
	URI     string  `json:"uri"`
	Score   float64 `json:"score"`
}

type resolveResult struct {
	Name       string              `json:"name"`
	Query      string              `json:"query"`
	Threshold  float64             `json:"threshold"`
	Matched    bool                `json:"matched"`
	Match      *resolvedCandidate  `json:"match,omitempty"`
	Candidates []resolvedCandidate `json:"candidates"`
}

// Resolve searches one track name and prints the scored candidates. Nothing is added or downloaded.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	if err := r.useConfig(cmd); err != nil {
		return err
	}

	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: track name", shared.ErrMissingArgument)
	}

	settings := syncSettings{
		threshold: r.config.Matcher.Threshold,
		limit:     r.config.Matcher.SearchLimit,
		policy:    shared.PolicyNever,
	}
	if err := r.checkSettings(cmd, &settings); err != nil {
		return err
	}

	resolver, err := r.newResolver(ctx, settings)
	if err != nil {
		return err
	}

	lookup, err := resolver.Lookup(ctx, name)
	if err != nil {
		return err
	}

	result := resolveResult{
		Name:       name,
		Query:      lookup.Query,
		Threshold:  settings.threshold,
		Matched:    lookup.Match.Matched,
		Candidates: make([]resolvedCandidate, 0, len(lookup.Ranked)),
	}
	for i, s := range lookup.Ranked {
		c := resolvedCandidate{
			Rank:    i + 1,
			Name:    s.Candidate.Name,
			Artists: s.Candidate.Artists(),
			URI:     s.Candidate.URI,
			Score:   s.Score,
		}
		result.Candidates = append(result.Candidates, c)
		if lookup.Match.Matched && s.Index == lookup.Match.Index {
			match := c
			result.Match = &match
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlain("Query: %s\n", result.Query)
	r.writePlain("Threshold: %.2f\n\n", result.Threshold)

	if len(result.Candidates) == 0 {
		r.writePlain("No candidates found.\n")
		return nil
	}

	for _, c := range result.Candidates {
		r.writePlain("%d. [%.3f] %s - %s (%s)\n", c.Rank, c.Score, c.Name, c.Artists, c.URI)
	}

	if result.Match != nil {
		r.writePlainln("✓ Would add: %s - %s (%s)", result.Match.Name, result.Match.Artists, result.Match.URI)
	} else {
		r.writePlainln("✗ No candidate under the threshold; sync would fall back to a download")
	}
	return nil
}
