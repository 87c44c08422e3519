package queue

import (
	"github.com/givance/webserver-sub009/pkg/analysis"
	"github.com/givance/webserver-sub009/pkg/journey"
)

type QueueAnalysisMsg struct {
	CorrelationID  string   `json:"correlation_id"`
	OrganizationID string   `json:"organization_id"`
	DonorIDs       []string `json:"donor_ids"`
	RequestedBy    string   `json:"requested_by"`
}

type QueueJourneyMsg struct {
	CorrelationID  string `json:"correlation_id"`
	OrganizationID string `json:"organization_id"`
	Description    string `json:"description"`
}

// AnalysisCompletedMsg is published on analysis.completed.<organization>.
type AnalysisCompletedMsg struct {
	CorrelationID string                `json:"correlation_id"`
	Result        *analysis.BatchResult `json:"result"`
}

// JourneyCompletedMsg is published on journey.completed.<organization>.
type JourneyCompletedMsg struct {
	CorrelationID  string         `json:"correlation_id"`
	OrganizationID string         `json:"organization_id"`
	Graph          *journey.Graph `json:"graph"`
}

func AnalysisCompletedTopic(organizationID string) string {
	return "analysis.completed." + organizationID
}

func JourneyCompletedTopic(organizationID string) string {
	return "journey.completed." + organizationID
}
