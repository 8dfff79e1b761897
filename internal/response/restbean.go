// Package response は API 共通のレスポンス封筒（RestBean）を提供します。
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContentType は RestBean を返すときの Content-Type です。文字コードは常に UTF-8 です。
const ContentType = "application/json; charset=utf-8"

// RestBean はすべての API レスポンスを包む封筒です。
// data が空の場合も null として出力します。
type RestBean struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

// Success は data なしの成功レスポンスを作成します。
func Success(msg string) RestBean {
	return RestBean{Code: http.StatusOK, Msg: msg}
}

// SuccessWithData は data 付きの成功レスポンスを作成します。
func SuccessWithData(msg string, data any) RestBean {
	return RestBean{Code: http.StatusOK, Msg: msg, Data: data}
}

// Failure はエラーレスポンスを作成します。
func Failure(code int, msg string) RestBean {
	return RestBean{Code: code, Msg: msg}
}

// FailureWithData は補足情報付きのエラーレスポンスを作成します。
func FailureWithData(code int, msg string, data any) RestBean {
	return RestBean{Code: code, Msg: msg, Data: data}
}

// Write は RestBean を JSON で書き込みます。
func Write(c *gin.Context, status int, bean RestBean) {
	c.Header("Content-Type", ContentType)
	c.JSON(status, bean)
}

// Abort は後続のハンドラーを止めて RestBean を書き込みます。
func Abort(c *gin.Context, status int, bean RestBean) {
	c.Header("Content-Type", ContentType)
	c.AbortWithStatusJSON(status, bean)
}
