package entity

import "time"

type NetworkPlacement struct {
	SubnetID string `json:"subnet_id"`
}

// SecurityBinding groups the firewall and identity references a worker runs with.
type SecurityBinding struct {
	SecurityGroupIDs []string `json:"security_group_ids"`
	InstanceProfile  string   `json:"instance_profile"`
	KeyName          string   `json:"key_name,omitempty"`
}

// LaunchRequest is built fresh per job and never mutated after submission.
type LaunchRequest struct {
	ImageID          string            `json:"image_id"`
	InstanceSize     string            `json:"instance_size"`
	BootstrapPayload string            `json:"bootstrap_payload"` // base64
	Placement        NetworkPlacement  `json:"placement"`
	Security         SecurityBinding   `json:"security"`
	Count            int32             `json:"count"`
	ClientToken      string            `json:"client_token"`
	Tags             map[string]string `json:"tags,omitempty"`
}

// InstanceHandle identifies an instance accepted by the compute API
type InstanceHandle struct {
	InstanceID string    `json:"instance_id"`
	ImageID    string    `json:"image_id"`
	LaunchedAt time.Time `json:"launched_at"`
}
