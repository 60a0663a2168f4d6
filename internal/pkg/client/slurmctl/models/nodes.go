package models

// Nodes is keyed by node name; a node can sit in several partitions.
type Nodes map[string]*Node

type Node struct {
	Name      string   `json:"name"`
	Partition []string `json:"partition"`
	State     string   `json:"state"`
	Memory    int      `json:"memory"`
	CPUs      int      `json:"cpus"`
	Socket    int      `json:"socket"`
	Cores     int      `json:"cores"`
	Threads   int      `json:"threads"`
	GPU       string   `json:"gpu"`
}
