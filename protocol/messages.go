package protocol

// Request and response bodies of the gateway. JSON names match the browser
// client, including the substrate-specific names in SubscribeResponse.

const (
	TypeInitiatePublishRequest    = "initiatePublishRequest"
	TypeInitiatePublishResponse   = "initiatePublishResponse"
	TypePublishRequest            = "publishRequest"
	TypePublishResponse           = "publishResponse"
	TypeInitiateSubscribeRequest  = "initiateSubscribeRequest"
	TypeInitiateSubscribeResponse = "initiateSubscribeResponse"
	TypeSubscribeRequest          = "subscribeRequest"
	TypeSubscribeResponse         = "subscribeResponse"
	TypeMessage                   = "message"
)

// InitiatePublishRequest asks for a publish token. MessageSignature is the
// sender's signature over the exact message JSON it will publish.
type InitiatePublishRequest struct {
	Type             string `json:"type"`
	SenderPublicKey  string `json:"senderPublicKey"`
	Channel          string `json:"channel"`
	MessageSize      int    `json:"messageSize"`
	MessageSignature string `json:"messageSignature"`
}

func (*InitiatePublishRequest) fields() []string {
	return []string{"type", "senderPublicKey", "channel", "messageSize", "messageSignature"}
}
func (*InitiatePublishRequest) expectedType() string  { return TypeInitiatePublishRequest }
func (r *InitiatePublishRequest) requestType() string { return r.Type }

// InitiatePublishResponse carries a sealed publish token.
type InitiatePublishResponse struct {
	Type           string `json:"type"`
	PublishToken   string `json:"publishToken"`
	TokenSignature string `json:"tokenSignature"`
}

// PublishRequest redeems a publish token.
type PublishRequest struct {
	Type              string `json:"type"`
	PublishToken      string `json:"publishToken"`
	TokenSignature    string `json:"tokenSignature"`
	MessageJSON       string `json:"messageJson"`
	ChallengeResponse string `json:"challengeResponse"`
}

func (*PublishRequest) fields() []string {
	return []string{"type", "publishToken", "tokenSignature", "messageJson", "challengeResponse"}
}
func (*PublishRequest) expectedType() string  { return TypePublishRequest }
func (r *PublishRequest) requestType() string { return r.Type }

// PublishResponse acknowledges a published message.
type PublishResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
}

// InitiateSubscribeRequest asks for a subscribe token covering Channels.
type InitiateSubscribeRequest struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels"`
}

func (*InitiateSubscribeRequest) fields() []string {
	return []string{"type", "channels"}
}
func (*InitiateSubscribeRequest) expectedType() string  { return TypeInitiateSubscribeRequest }
func (r *InitiateSubscribeRequest) requestType() string { return r.Type }

// InitiateSubscribeResponse carries a sealed subscribe token.
type InitiateSubscribeResponse struct {
	Type           string `json:"type"`
	SubscribeToken string `json:"subscribeToken"`
	TokenSignature string `json:"tokenSignature"`
}

// SubscribeRequest redeems a subscribe token. Channels must repeat the
// token's channel list exactly.
type SubscribeRequest struct {
	Type              string   `json:"type"`
	SubscribeToken    string   `json:"subscribeToken"`
	TokenSignature    string   `json:"tokenSignature"`
	ChallengeResponse string   `json:"challengeResponse"`
	Channels          []string `json:"channels"`
}

func (*SubscribeRequest) fields() []string {
	return []string{"type", "subscribeToken", "tokenSignature", "challengeResponse", "channels"}
}
func (*SubscribeRequest) expectedType() string  { return TypeSubscribeRequest }
func (r *SubscribeRequest) requestType() string { return r.Type }

// SubscribeResponse returns the subscribe-side connection identifier and a
// scoped read credential for the distribution substrate.
type SubscribeResponse struct {
	Type               string `json:"type"`
	PubnubSubscribeKey string `json:"pubnubSubscribeKey"`
	PubnubToken        string `json:"pubnubToken"`
}

// SystemSignaturePayload is what the gateway attests for every delivered
// message. Field order is part of the signed encoding.
type SystemSignaturePayload struct {
	Channel          string `json:"channel"`
	SenderPublicKey  string `json:"senderPublicKey"`
	Timestamp        int64  `json:"timestamp"`
	MessageSignature string `json:"messageSignature"`
}

// PubsubMessage is the unit handed to the distribution substrate.
type PubsubMessage struct {
	Type                   string `json:"type"`
	SenderPublicKey        string `json:"senderPublicKey"`
	Timestamp              int64  `json:"timestamp"`
	MessageJSON            string `json:"messageJson"`
	MessageSignature       string `json:"messageSignature"`
	SystemSignaturePayload string `json:"systemSignaturePayload"`
	SystemSignature        string `json:"systemSignature"`
	SystemPublicKey        string `json:"systemPublicKey"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string     `json:"error"`
	Reason ReasonCode `json:"reason,omitempty"`
}
