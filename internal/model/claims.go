package model

import "github.com/golang-jwt/jwt/v5"

// ActorClaims 是平台签发的 JWT 载荷。UserId 为诊所/实验室 (租户) ID;
// LabAdminId / ClinicAdminId 二选一标识具体操作人。
type ActorClaims struct {
	jwt.RegisteredClaims
	LabID         int64  `json:"UserId"`
	LabAdminID    int64  `json:"LabAdminId"`
	ClinicAdminID int64  `json:"ClinicAdminId"`
	Role          string `json:"Role"`
	SessionID     string `json:"SessionId"`
}

// Actor 是审计管道消费的操作人视图, 字段缺失降级为 nil 而不是报错。
type Actor struct {
	LabID     *int64
	UserID    *int64
	Role      string
	SessionID string
}

// ToActor resolves the admin identity: LabAdminId wins when non-zero,
// otherwise ClinicAdminId, otherwise no user id at all.
func (c *ActorClaims) ToActor() Actor {
	a := Actor{Role: c.Role, SessionID: c.SessionID}
	if c.LabID != 0 {
		labID := c.LabID
		a.LabID = &labID
	}
	switch {
	case c.LabAdminID != 0:
		id := c.LabAdminID
		a.UserID = &id
	case c.ClinicAdminID != 0:
		id := c.ClinicAdminID
		a.UserID = &id
	}
	return a
}
