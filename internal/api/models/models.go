// Package models holds the request and response bodies of the HTTP API.
package models

import (
	"github.com/smazurov/audiocard/internal/card"
	"github.com/smazurov/audiocard/internal/jack"
	"github.com/smazurov/audiocard/internal/metrics"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Power   string `json:"power" example:"probed" doc:"Card power state"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/arm" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Card models
type CardStatusResponse struct {
	Body card.Status
}

type PowerData struct {
	Power string `json:"power" example:"suspended" doc:"Card power state after the transition"`
}

type PowerResponse struct {
	Body PowerData
}

type JackResponse struct {
	Body jack.Status
}

// Link models
type LinkPath struct {
	Link string `path:"link" example:"hifi" doc:"Link name from the board profile"`
}

type HWParamsRequest struct {
	Link string `path:"link" example:"hifi" doc:"Link name from the board profile"`
	Body struct {
		Rate     int `json:"rate" minimum:"1" example:"48000" doc:"Sample rate in Hz"`
		Channels int `json:"channels,omitempty" minimum:"0" example:"2" doc:"Channel count"`
	}
}

type HWParamsData struct {
	Link    string `json:"link" example:"hifi" doc:"Link name"`
	Rate    int    `json:"rate" example:"48000" doc:"Sample rate in Hz"`
	MCLK    int    `json:"mclk" example:"12288000" doc:"Shared master clock in Hz"`
	SysClk  int    `json:"sys_clk" example:"12288000" doc:"Codec system clock in Hz"`
	MinMCLK int    `json:"min_mclk,omitempty" example:"1024000" doc:"Lower bound used for fallback, BT-SCO only"`
	Format  string `json:"format" example:"i2s|cbs_cfs" doc:"Applied framing"`
}

type HWParamsResponse struct {
	Body HWParamsData
}

type LinkListResponse struct {
	Body struct {
		Links []card.LinkStatus `json:"links" doc:"Links in board profile order"`
	}
}

type LinkResponse struct {
	Body card.LinkStatus
}

// Metrics snapshot
type MetricsResponse struct {
	Body metrics.Snapshot
}

// Log models
type LogEntry struct {
	Seq        uint64         `json:"seq" doc:"Monotonic sequence number"`
	Timestamp  string         `json:"timestamp" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"clock" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

type LogsRequest struct {
	Module string `query:"module" example:"jack" doc:"Only entries from this module"`
	Limit  int    `query:"limit" minimum:"0" default:"200" doc:"Newest N entries, 0 for all"`
}

type LogsResponse struct {
	Body struct {
		Entries []LogEntry `json:"entries"`
		Count   int        `json:"count"`
	}
}
