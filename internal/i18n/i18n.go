// Package i18n はレスポンスメッセージの多言語化を提供します。
// 言語は Accept-Language ヘッダーから golang.org/x/text/language で選択します。
package i18n

import (
	"golang.org/x/text/language"
)

// メッセージID
const (
	LoginSuccess          = "login.success"
	LogoutSuccess         = "logout.success"
	CurrentUser           = "auth.current_user"
	AuthRequired          = "auth.required"
	BadCredentials        = "auth.bad_credentials"
	SessionExpired        = "auth.session_expired"
	SessionIdle           = "auth.session_idle"
	TooManyAttempts       = "auth.too_many_attempts"
	InvalidInput          = "auth.invalid_input"
	CSRFMissing           = "csrf.missing"
	CSRFInvalid           = "csrf.invalid"
	ServerError           = "server.error"
	ServerMisconfigured   = "server.misconfigured"
	RouteNotFound         = "route.not_found"
	RouteMethodNotAllowed = "route.method_not_allowed"
	EventsLoaded          = "audit.events_loaded"
	EventsInvalidLimit    = "audit.invalid_limit"
	EventsLoadFailed      = "audit.load_failed"
)

var messages = map[language.Tag]map[string]string{
	language.Chinese: {
		LoginSuccess:          "登录成功",
		LogoutSuccess:         "退出登录成功",
		CurrentUser:           "获取成功",
		AuthRequired:          "请先登录",
		BadCredentials:        "用户名或密码错误",
		SessionExpired:        "会话已过期，请重新登录",
		SessionIdle:           "长时间未操作，请重新登录",
		TooManyAttempts:       "登录尝试次数过多，请稍后再试",
		InvalidInput:          "请提供用户名和密码",
		CSRFMissing:           "缺少 CSRF 令牌",
		CSRFInvalid:           "CSRF 令牌不匹配",
		ServerError:           "服务器内部错误",
		ServerMisconfigured:   "认证服务未正确配置",
		RouteNotFound:         "请求的资源不存在",
		RouteMethodNotAllowed: "不支持该请求方法",
		EventsLoaded:          "获取成功",
		EventsInvalidLimit:    "limit 必须是正整数",
		EventsLoadFailed:      "认证记录读取失败",
	},
	language.English: {
		LoginSuccess:          "login successful",
		LogoutSuccess:         "logout successful",
		CurrentUser:           "ok",
		AuthRequired:          "authentication required",
		BadCredentials:        "invalid username or password",
		SessionExpired:        "session expired, please log in again",
		SessionIdle:           "session timed out due to inactivity",
		TooManyAttempts:       "too many login attempts, try again later",
		InvalidInput:          "username and password are required",
		CSRFMissing:           "CSRF token is missing",
		CSRFInvalid:           "CSRF token does not match",
		ServerError:           "internal server error",
		ServerMisconfigured:   "authentication is not configured",
		RouteNotFound:         "resource not found",
		RouteMethodNotAllowed: "method not allowed",
		EventsLoaded:          "ok",
		EventsInvalidLimit:    "limit must be a positive integer",
		EventsLoadFailed:      "failed to load auth events",
	},
	language.Japanese: {
		LoginSuccess:          "ログインに成功しました",
		LogoutSuccess:         "ログアウトしました",
		CurrentUser:           "取得しました",
		AuthRequired:          "ログインが必要です",
		BadCredentials:        "ユーザー名またはパスワードが正しくありません",
		SessionExpired:        "セッションの有効期限が切れました",
		SessionIdle:           "しばらく操作がなかったため再ログインしてください",
		TooManyAttempts:       "一定時間後に再度お試しください",
		InvalidInput:          "username と password を送ってください",
		CSRFMissing:           "CSRF トークンが設定されていません",
		CSRFInvalid:           "CSRF トークンが一致しません",
		ServerError:           "内部サーバーエラーが発生しました",
		ServerMisconfigured:   "認証設定が不足しています",
		RouteNotFound:         "リソースが見つかりません",
		RouteMethodNotAllowed: "許可されていないメソッドです",
		EventsLoaded:          "取得しました",
		EventsInvalidLimit:    "limit には正の整数を指定してください",
		EventsLoadFailed:      "認証履歴の取得に失敗しました",
	},
}

// Catalog は言語選択とメッセージ解決を行います。
type Catalog struct {
	tags    []language.Tag // 先頭が既定言語
	matcher language.Matcher
}

// NewCatalog は既定言語を指定して Catalog を作成します。
// 未対応の言語が指定された場合は中国語を既定にします。
func NewCatalog(defaultLang string) *Catalog {
	def := language.Chinese
	if tag, err := language.Parse(defaultLang); err == nil {
		base, _ := tag.Base()
		for supported := range messages {
			if b, _ := supported.Base(); b == base {
				def = supported
				break
			}
		}
	}

	tags := []language.Tag{def}
	for _, t := range []language.Tag{language.Chinese, language.English, language.Japanese} {
		if t != def {
			tags = append(tags, t)
		}
	}
	return &Catalog{
		tags:    tags,
		matcher: language.NewMatcher(tags),
	}
}

// Match は Accept-Language ヘッダーの値から使用する言語を決めます。
func (c *Catalog) Match(acceptLanguage string) language.Tag {
	if acceptLanguage == "" {
		return c.tags[0]
	}
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return c.tags[0]
	}
	_, index, confidence := c.matcher.Match(prefs...)
	if confidence == language.No {
		return c.tags[0]
	}
	return c.tags[index]
}

// Message は言語とメッセージIDから文言を返します。
// 未登録のIDはそのまま返します。
func (c *Catalog) Message(tag language.Tag, id string) string {
	if msg, ok := messages[tag][id]; ok {
		return msg
	}
	if msg, ok := messages[c.tags[0]][id]; ok {
		return msg
	}
	return id
}

// Translate は Accept-Language ヘッダーの値から直接文言を返します。
func (c *Catalog) Translate(acceptLanguage, id string) string {
	return c.Message(c.Match(acceptLanguage), id)
}
