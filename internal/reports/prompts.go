package reports

import (
	"fmt"
	"strings"

	"github.com/painscout/painscout/internal/models"
)

const summarySystemPrompt = `You are a market research analyst specializing in identifying customer pain points from online discussions.

Analyze the provided discussion sources and produce a markdown report with these sections:

# Pain Point Analysis

## Executive Summary
Two or three sentences on the dominant themes.

## Key Pain Points
For each distinct pain point: a heading, a short description, which sources express it, and how severe or frequent it appears.

## Audience Signals
Who is experiencing these problems, and in what context.

## Opportunities
Concrete product or service opportunities suggested by the pain points.

Ground every claim in the sources. Reference sources by their number. Do not invent pain points that the sources do not support.`

const mvpBuilderSystemPrompt = `You are a startup advisor who turns validated customer pain points into actionable MVP plans.

Analyze the provided discussion sources and produce a markdown report with these sections:

# MVP Builder Report

## Problem Statement
The core problem, stated in the customers' own terms, citing sources by number.

## Target Customer
Who has this problem most acutely.

## Proposed MVP
The smallest product that addresses the problem: core feature set, what is deliberately left out, and why.

## Validation Plan
How to test demand cheaply before building more.

## Risks
The main reasons this could fail.

Ground every claim in the sources. Do not propose features the sources give no evidence of demand for.`

func systemPrompt(t models.ReportType) string {
	if t == models.ReportMVPBuilder {
		return mvpBuilderSystemPrompt
	}
	return summarySystemPrompt
}

// buildUserPrompt lays the selected results out as numbered source blocks so
// the model can cite them.
func buildUserPrompt(results []models.SearchResult) string {
	var b strings.Builder
	b.WriteString("Analyze the following discussion sources:\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "Source %d [%s]:\n", i+1, r.Platform)
		fmt.Fprintf(&b, "Title: %s\n", r.Title)
		fmt.Fprintf(&b, "URL: %s\n", r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "Content: %s\n", r.Snippet)
		}
		if r.EngagementScore > 0 {
			fmt.Fprintf(&b, "Engagement: %.0f (upvotes %d, comments %d)\n",
				r.EngagementScore, r.Upvotes, r.Comments)
		}
		b.WriteString("\n")
	}
	return b.String()
}
