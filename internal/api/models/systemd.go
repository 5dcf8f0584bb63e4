package models

type ServicePath struct {
	Unit string `path:"unit" example:"bluetooth.service" doc:"systemd unit name"`
}

type ServiceStatus struct {
	Unit        string `json:"unit" example:"bluetooth.service" doc:"Unit name"`
	ActiveState string `json:"active_state" example:"active" doc:"systemd ActiveState"`
	SubState    string `json:"sub_state" example:"running" doc:"systemd SubState"`
}

type ServiceStatusResponse struct {
	Body ServiceStatus
}

type ServiceAction struct {
	Unit   string `json:"unit" example:"bluetooth.service" doc:"Unit name"`
	Action string `json:"action" example:"restart" doc:"Action performed"`
	Result string `json:"result" example:"done" doc:"systemd job result"`
}

type ServiceActionResponse struct {
	Body ServiceAction
}

type ServiceListResponse struct {
	Body struct {
		Units []string `json:"units" doc:"Units reachable through this API"`
	}
}
