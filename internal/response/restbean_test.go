package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestWriteSuccessEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)

	Write(c, http.StatusOK, Success("登录成功"))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != ContentType {
		t.Fatalf("unexpected content-type: %s", ct)
	}
	// data は省略されず null で出力され、中国語はエスケープされない
	if body := rec.Body.String(); body != `{"code":200,"msg":"登录成功","data":null}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestAbortStopsChain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	called := false
	router := gin.New()
	router.Use(func(c *gin.Context) {
		Abort(c, http.StatusUnauthorized, Failure(http.StatusUnauthorized, "请先登录"))
	})
	router.GET("/x", func(c *gin.Context) { called = true })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	if called {
		t.Fatal("handler must not run after Abort")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if body := rec.Body.String(); body != `{"code":401,"msg":"请先登录","data":null}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestFailureWithData(t *testing.T) {
	bean := FailureWithData(http.StatusUnauthorized, "x", map[string]int{"remainingAttempts": 2})
	if bean.Code != http.StatusUnauthorized || bean.Data == nil {
		t.Fatalf("unexpected bean: %#v", bean)
	}
}
