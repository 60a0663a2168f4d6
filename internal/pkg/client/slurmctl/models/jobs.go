package models

type Jobs []Job

type Job struct {
	Jobid     string `json:"jobid"`
	State     string `json:"state"`
	User      string `json:"user"`
	Account   string `json:"account"`
	CPUs      string `json:"cpus"`
	Nodelist  string `json:"nodelist"`
	Partition string `json:"partition"`
	QoS       string `json:"qos"`
	Reason    string `json:"reason"`
}
