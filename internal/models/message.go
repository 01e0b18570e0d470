package models

type HealthCheck struct {
	Status  string `json:"sys_status"`
	Uptime  int64  `json:"uptime"`
	Streams int    `json:"streams"`
}
