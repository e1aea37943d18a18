package model

import (
	"bytes"
	"encoding/json"
)

// Envelope 是变更类 Handler 响应体的类型化视图。管道只关心顶层 data 字段;
// data 可以是单个对象或对象数组, 其余形状一律忽略。
type Envelope struct {
	Object  *EnvelopeObject  // data 为单对象时非 nil
	Objects []EnvelopeObject // data 为数组时逐元素解码
}

// EnvelopeObject 持有单个 data 对象里与通知相关的可选字段,
// 缺失或类型不符的字段落到默认值, 绝不让解码失败影响主流程。
type EnvelopeObject struct {
	Message     string // notificationMessage (string 形式)
	UserMessage string // userNotificationMessage, 缺省回退到 Message
	BranchID    *int64 // branchLabId / branchId
	Priority    int    // 默认 PriorityNormal

	// "重发" 形状: notificationMessage 与 labBranchId 为平行数组时逐元素保留,
	// 配对规则 (取 min 长度) 由调用方执行。
	ResendMessages []string
	ResendBranches []*int64

	// Raw 为该对象自身的 JSON, 用于生成 Details 快照。
	Raw json.RawMessage
}

// HasResend reports whether the object carries both parallel resend arrays.
func (o *EnvelopeObject) HasResend() bool {
	return len(o.ResendMessages) > 0 && len(o.ResendBranches) > 0
}

// DecodeEnvelope parses a serialized response body into its typed envelope.
// A body without a top-level data object or array yields an empty envelope.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var outer struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, err
	}

	env := &Envelope{}
	data := bytes.TrimSpace(outer.Data)
	if len(data) == 0 {
		return env, nil
	}

	switch data[0] {
	case '{':
		obj, err := decodeEnvelopeObject(data)
		if err != nil {
			return nil, err
		}
		env.Object = obj
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return nil, err
		}
		for _, elem := range elems {
			elem = bytes.TrimSpace(elem)
			if len(elem) == 0 || elem[0] != '{' {
				// 数组里的非对象元素不产生审计记录
				continue
			}
			obj, err := decodeEnvelopeObject(elem)
			if err != nil {
				return nil, err
			}
			env.Objects = append(env.Objects, *obj)
		}
	}
	return env, nil
}

func decodeEnvelopeObject(raw json.RawMessage) (*EnvelopeObject, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	obj := &EnvelopeObject{
		Message:  NoNotificationMessage,
		Priority: PriorityNormal,
		Raw:      raw,
	}

	switch v := fields["notificationMessage"].(type) {
	case string:
		obj.Message = v
	case []any:
		// 重发形状: 逐元素取消息, 非字符串位置落到默认文案
		for _, elem := range v {
			if s, ok := elem.(string); ok {
				obj.ResendMessages = append(obj.ResendMessages, s)
			} else {
				obj.ResendMessages = append(obj.ResendMessages, NoNotificationMessage)
			}
		}
	}

	if s, ok := fields["userNotificationMessage"].(string); ok {
		obj.UserMessage = s
	} else {
		// Handler 未提供面向接收人的独立文案时, 复用诊所侧消息
		obj.UserMessage = obj.Message
	}

	if n, ok := numberField(fields, "branchLabId"); ok {
		obj.BranchID = &n
	} else if n, ok := numberField(fields, "branchId"); ok {
		obj.BranchID = &n
	}

	if n, ok := numberField(fields, "priority"); ok {
		obj.Priority = int(n)
	}

	if arr, ok := fields["labBranchId"].([]any); ok {
		for _, elem := range arr {
			if f, ok := elem.(float64); ok {
				id := int64(f)
				obj.ResendBranches = append(obj.ResendBranches, &id)
			} else {
				obj.ResendBranches = append(obj.ResendBranches, nil)
			}
		}
	}

	return obj, nil
}

func numberField(fields map[string]any, key string) (int64, bool) {
	f, ok := fields[key].(float64)
	if !ok {
		return 0, false
	}
	return int64(f), true
}
