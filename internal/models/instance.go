package models

// PortName is a logical port role of an instance.
type PortName string

const (
	PortMM           PortName = "mm"
	PortMMPMUI       PortName = "mmpm_ui"
	PortMMPMAPI      PortName = "mmpm_api"
	PortMMPMLog      PortName = "mmpm_log"
	PortMMPMRepeater PortName = "mmpm_repeater"
)

/**
 * Instance is one discovered mirror deployment
 * @property {string} name - Directory basename
 * @property {int} ordinal - Zero-based discovery index
 * @property {map[PortName]int} ports - Assigned port per logical role
 * @property {string} boundIP - LAN address every port is published on
 */
type Instance struct {
	Name    string           `json:"name"`
	Ordinal int              `json:"ordinal"`
	Ports   map[PortName]int `json:"ports"`
	BoundIP string           `json:"boundIp"`
}

func (i Instance) Port(name PortName) int {
	return i.Ports[name]
}
