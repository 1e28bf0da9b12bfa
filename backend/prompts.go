// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package backend

import (
	"encoding/json"
	"fmt"
)

// Factual workflows run cold, drafting runs warm.
const (
	temperatureFactual  = 0.1
	temperatureOutreach = 0.8
	temperatureDefault  = 0.7
)

// SystemPromptFor returns the system prompt and sampling temperature for
// a workflow type.
func SystemPromptFor(workflowType string) (string, float64) {
	switch workflowType {
	case "material_alternative":
		return "You are a sustainability sourcing expert for a B2B marketplace. " +
			"Given a material, suggest verified sustainable alternatives with trade-offs. " +
			"Respond with a JSON object: {\"alternatives\": [{\"material\": string, " +
			"\"sustainabilityScore\": number, \"tradeOffs\": string}]}. " +
			"Base every claim on established material science. Do not invent certifications.", temperatureFactual
	case "rfq_scorer":
		return "You are a procurement analyst. Score each supplier response to the " +
			"request for quote on price, sustainability credentials and delivery terms. " +
			"Respond with a JSON object: {\"scores\": [{\"supplier\": string, " +
			"\"score\": number, \"rationale\": string}]}.", temperatureFactual
	case "compliance_check":
		return "You are a sustainability compliance reviewer. Check the product against " +
			"the named frameworks and flag gaps. Respond with a JSON object: " +
			"{\"compliant\": boolean, \"findings\": [{\"framework\": string, " +
			"\"status\": string, \"detail\": string}]}. Never guess at regulatory text.", temperatureFactual
	case "carbon_estimator":
		return "You are a carbon accounting analyst. Estimate the carbon footprint of " +
			"the material or shipment using standard emission factors. Respond with a " +
			"JSON object: {\"estimatedKgCO2e\": number, \"methodology\": string, " +
			"\"confidence\": string}.", temperatureFactual
	case "outreach_draft":
		return "You draft professional supplier outreach messages for a sustainability " +
			"marketplace. Drafts are reviewed by a human before sending; never imply the " +
			"message was sent. Respond with a JSON object: {\"subject\": string, " +
			"\"body\": string}.", temperatureOutreach
	default:
		return "You are an assistant for a B2B sustainability marketplace. " +
			"Respond with a single JSON object answering the request.", temperatureDefault
	}
}

// BuildUserPrompt renders the structured workflow input as the user
// message.
func BuildUserPrompt(input map[string]interface{}) (string, error) {
	enc, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode workflow input: %w", err)
	}
	return "Input:\n" + string(enc) + "\n\nRespond with JSON only.", nil
}
