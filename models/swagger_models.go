package models

// APIResponse 通用API响应
type APIResponse struct {
	Code    int         `json:"code" example:"0"`
	Message string      `json:"message" example:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// AskRequest 提问请求体
type AskRequest struct {
	Question string `json:"question" example:"Qual o custo do cabeçote da impressora UV?"`
	Mode     string `json:"mode,omitempty" example:"multi"` // single / multi，为空使用配置
}

// AskResponse 提问响应
type AskResponse struct {
	Code    int       `json:"code" example:"0"`
	Message string    `json:"message" example:"success"`
	Data    AskResult `json:"data"`
}

// RateResponse 汇率响应
type RateResponse struct {
	Code    int          `json:"code" example:"0"`
	Message string       `json:"message" example:"success"`
	Data    ExchangeRate `json:"data"`
}

// SheetResponse 工作表数据响应
type SheetResponse struct {
	Code    int      `json:"code" example:"0"`
	Message string   `json:"message" example:"success"`
	Data    []Record `json:"data"`
}
