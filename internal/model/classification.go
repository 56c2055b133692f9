package model

import "strings"

type AttackType string

const (
	AttackAccessControl           AttackType = "access_control"
	AttackArithmetic              AttackType = "arithmetic"
	AttackDenialOfService         AttackType = "denial_of_service"
	AttackFrontRunning            AttackType = "front_running"
	AttackInitialization          AttackType = "initialization"
	AttackReentrancy              AttackType = "reentrancy"
	AttackSignatureVerification   AttackType = "signature_verification"
	AttackUncheckedReturnValue    AttackType = "unchecked_return_value"
	AttackUnencryptedPrivateData  AttackType = "unencrypted_private_data"
	AttackUnprotectedSelfDestruct AttackType = "unprotected_self_destruct"
)

// AttackTypes is the fixed taxonomy, in canonical order.
var AttackTypes = []AttackType{
	AttackAccessControl,
	AttackArithmetic,
	AttackDenialOfService,
	AttackFrontRunning,
	AttackInitialization,
	AttackReentrancy,
	AttackSignatureVerification,
	AttackUncheckedReturnValue,
	AttackUnencryptedPrivateData,
	AttackUnprotectedSelfDestruct,
}

func (a AttackType) Valid() bool {
	for _, item := range AttackTypes {
		if item == a {
			return true
		}
	}
	return false
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh}

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

type Mode string

const (
	ModeRaw Mode = "raw"
	ModeRAG Mode = "rag"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRaw:
		return ModeRaw, true
	case ModeRAG:
		return ModeRAG, true
	}
	return "", false
}

type ClassifyRequest struct {
	ContractID   string
	ContractText string
	Mode         Mode
	Model        string
	K            int
}

// Finding is one reported vulnerability. A nil Refs serialises as null.
type Finding struct {
	Type        AttackType `json:"type"`
	Severity    Severity   `json:"severity"`
	Lines       []int      `json:"lines"`
	Description string     `json:"description"`
	Refs        []string   `json:"refs"`
}

// ClassificationResult is the structured answer for one contract. A nil
// Attacks serialises as null, meaning no findings.
type ClassificationResult struct {
	ID       string    `json:"id"`
	Solidity string    `json:"solidity"`
	Attacks  []Finding `json:"attacks"`
}
