package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

// 测试创建新错误
func (suite *ErrorsTestSuite) TestNew() {
	// 测试基本错误创建
	err := New(ErrInvalidParam)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("无效的参数", err.Message)
	suite.Empty(err.Details)

	// 测试带详情的错误
	err = New(ErrNotFound, "用户不存在")
	suite.NotNil(err)
	suite.Equal(ErrNotFound, err.Code)
	suite.Equal("资源未找到", err.Message)
	suite.Equal("用户不存在", err.Details)

	// 测试多个详情
	err = New(ErrDatabaseConnect, "连接失败", "主机: localhost", "端口: 3306")
	suite.Equal("连接失败; 主机: localhost; 端口: 3306", err.Details)
}

// 测试格式化错误创建
func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrInvalidParam, "参数 %s 的值 %d 无效", "turn", -1)
	suite.NotNil(err)
	suite.Equal(ErrInvalidParam, err.Code)
	suite.Equal("参数 turn 的值 -1 无效", err.Details)
}

// 测试错误包装
func (suite *ErrorsTestSuite) TestWrap() {
	// 包装标准错误
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrDatabaseQuery)
	suite.NotNil(wrappedErr)
	suite.Equal(ErrDatabaseQuery, wrappedErr.Code)
	suite.Equal("原始错误", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	// 包装nil错误
	nilErr := Wrap(nil, ErrUnknown)
	suite.Nil(nilErr)

	// 包装已有的AppError
	appErr := New(ErrNotFound, "资源不存在")
	wrappedAppErr := Wrap(appErr, ErrInvalidParam, "额外信息")
	suite.Equal(ErrNotFound, wrappedAppErr.Code) // 保留原始错误码
	suite.Contains(wrappedAppErr.Details, "额外信息")
}

// 测试格式化错误包装
func (suite *ErrorsTestSuite) TestWrapf() {
	originalErr := errors.New("连接超时")
	wrappedErr := Wrapf(originalErr, ErrNarratorRequest, "叙事服务 %s 请求失败", "http://ai.local")
	suite.NotNil(wrappedErr)
	suite.Equal(ErrNarratorRequest, wrappedErr.Code)
	suite.Equal("叙事服务 http://ai.local 请求失败", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
}

// 测试错误码判断
func (suite *ErrorsTestSuite) TestIs() {
	err := New(ErrPermissionDenied)
	suite.True(Is(err, ErrPermissionDenied))
	suite.False(Is(err, ErrNotFound))
	suite.False(Is(nil, ErrPermissionDenied))

	// 测试标准错误
	standardErr := errors.New("标准错误")
	suite.False(Is(standardErr, ErrUnknown))
}

// 测试获取错误码
func (suite *ErrorsTestSuite) TestGetCode() {
	// AppError
	appErr := New(ErrTokenExpired)
	suite.Equal(ErrTokenExpired, GetCode(appErr))

	// 标准错误
	standardErr := errors.New("标准错误")
	suite.Equal(ErrUnknown, GetCode(standardErr))

	// nil错误
	suite.Equal(ErrorCode(0), GetCode(nil))
}

// 测试错误消息
func (suite *ErrorsTestSuite) TestError() {
	// 只有消息
	err := &AppError{
		Code:    ErrNotFound,
		Message: "资源未找到",
	}
	suite.Equal("[1002] 资源未找到", err.Error())

	// 有详情
	err.Details = "房间码: XK42"
	suite.Equal("[1002] 资源未找到: 房间码: XK42", err.Error())
}

// 测试Unwrap
func (suite *ErrorsTestSuite) TestUnwrap() {
	originalErr := errors.New("原始错误")
	wrappedErr := Wrap(originalErr, ErrUnknown)
	suite.Equal(originalErr, wrappedErr.Unwrap())

	// 没有原因的错误
	err := New(ErrUnknown)
	suite.Nil(err.Unwrap())
}

// 测试WithDetails
func (suite *ErrorsTestSuite) TestWithDetails() {
	err := New(ErrInvalidParam)
	err.WithDetails("参数不能为空")
	suite.Equal("参数不能为空", err.Details)
}

// 测试WithCause
func (suite *ErrorsTestSuite) TestWithCause() {
	err := New(ErrDatabaseQuery)
	cause := errors.New("SQL语法错误")
	err.WithCause(cause)
	suite.Equal(cause, err.Cause)
	suite.Equal("SQL语法错误", err.Details)

	// 已有Details的情况
	err2 := New(ErrDatabaseQuery, "查询失败")
	err2.WithCause(cause)
	suite.Equal(cause, err2.Cause)
	suite.Equal("查询失败", err2.Details) // 保留原有Details
}

// 测试HTTP状态码映射
func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidParam, 400},
		{ErrNotFound, 400}, // ErrNotFound落在1001-1003区间，返回400
		{ErrRoomNotFound, 404},
		{ErrPermissionDenied, 403},
		{ErrNotHost, 403},
		{ErrTimeout, 408},
		{ErrGenerationBusy, 409},
		{ErrNotYourTurn, 400},
		{ErrAuthentication, 401},
		{ErrRateLimitExceeded, 429},
		{ErrDatabaseConnect, 503},
		{ErrUnknown, 500},
	}

	for _, tc := range testCases {
		err := New(tc.code)
		suite.Equal(tc.expected, err.HTTPStatus(), "错误码 %d 应该返回HTTP状态码 %d", tc.code, tc.expected)
	}
}

// 测试可重试判断
func (suite *ErrorsTestSuite) TestIsRetryable() {
	retryableErrors := []ErrorCode{
		ErrTimeout,
		ErrNarratorRequest,
		ErrNarratorTimeout,
		ErrNarratorStatus,
		ErrWebSocketConnect,
		ErrDatabaseConnect,
	}

	for _, code := range retryableErrors {
		err := New(code)
		suite.True(IsRetryable(err), "错误码 %d 应该是可重试的", code)
	}

	// 不可重试的错误
	nonRetryableErrors := []ErrorCode{
		ErrInvalidParam,
		ErrNotFound,
		ErrPermissionDenied,
		ErrNarratorEmpty,
	}

	for _, code := range nonRetryableErrors {
		err := New(code)
		suite.False(IsRetryable(err), "错误码 %d 不应该是可重试的", code)
	}

	// nil错误
	suite.False(IsRetryable(nil))
}

// 测试严重错误判断
func (suite *ErrorsTestSuite) TestIsCritical() {
	criticalErrors := []ErrorCode{
		ErrDatabaseConnect,
		ErrConfigLoad,
		ErrConfigMissing,
		ErrDataIntegrity,
	}

	for _, code := range criticalErrors {
		err := New(code)
		suite.True(IsCritical(err), "错误码 %d 应该是严重错误", code)
	}

	// 非严重错误
	nonCriticalErrors := []ErrorCode{
		ErrInvalidParam,
		ErrNotFound,
		ErrTimeout,
		ErrNarratorTimeout,
	}

	for _, code := range nonCriticalErrors {
		err := New(code)
		suite.False(IsCritical(err), "错误码 %d 不应该是严重错误", code)
	}

	// nil错误
	suite.False(IsCritical(nil))
}

// 测试调用栈捕获
func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.NotNil(err.Stack)
	suite.Greater(len(err.Stack), 0)

	// 获取格式化的调用栈
	stackStr := err.GetStack()
	suite.NotEmpty(stackStr)
}

// 测试错误响应
func (suite *ErrorsTestSuite) TestErrorResponse() {
	err := New(ErrNotFound, "用户不存在")
	response := NewErrorResponse(err, "req-123")

	suite.False(response.Success)
	suite.Equal(err, response.Error)
	suite.Equal("req-123", response.RequestID)
	suite.Greater(response.Timestamp, int64(0))
}

// 测试未知错误码
func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	// 使用未定义的错误码
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("未知错误", err.Message) // 应该使用默认消息
}

// 测试房间/游戏相关错误
func (suite *ErrorsTestSuite) TestRoomErrors() {
	roomErrors := map[ErrorCode]string{
		ErrRoomNotFound:       "房间不存在",
		ErrRoomClosed:         "房间已关闭",
		ErrRoomFull:           "房间已满",
		ErrGameNotStarted:     "游戏未开始",
		ErrGameAlreadyStarted: "游戏已经开始",
		ErrGameEnded:          "游戏已结束",
		ErrNotYourTurn:        "还没轮到你行动",
		ErrPlayerDead:         "玩家已死亡",
		ErrGenerationBusy:     "正在生成剧情",
		ErrNotHost:            "只有房主可以执行此操作",
	}

	for code, expectedMsg := range roomErrors {
		err := New(code)
		suite.Equal(expectedMsg, err.Message)
	}
}

// 测试叙事服务相关错误
func (suite *ErrorsTestSuite) TestNarratorErrors() {
	narratorErrors := map[ErrorCode]string{
		ErrNarratorRequest: "叙事服务请求失败",
		ErrNarratorTimeout: "叙事服务响应超时",
		ErrNarratorStatus:  "叙事服务返回异常状态",
		ErrNarratorEmpty:   "叙事服务返回空文本",
		ErrNarratorDecode:  "叙事服务响应解析失败",
	}

	for code, expectedMsg := range narratorErrors {
		err := New(code)
		suite.Equal(expectedMsg, err.Message)
	}
}

// 测试通信相关错误
func (suite *ErrorsTestSuite) TestCommunicationErrors() {
	commErrors := map[ErrorCode]string{
		ErrWebSocketConnect: "WebSocket连接失败",
		ErrWebSocketSend:    "WebSocket发送失败",
		ErrWebSocketReceive: "WebSocket接收失败",
		ErrWebSocketClosed:  "WebSocket连接已关闭",
		ErrMessageFormat:    "消息格式错误",
	}

	for code, expectedMsg := range commErrors {
		err := New(code)
		suite.Equal(expectedMsg, err.Message)
	}
}

// 测试数据库相关错误
func (suite *ErrorsTestSuite) TestDatabaseErrors() {
	dbErrors := map[ErrorCode]string{
		ErrDatabaseConnect: "数据库连接失败",
		ErrDatabaseQuery:   "数据库查询失败",
		ErrDatabaseInsert:  "数据库插入失败",
		ErrDatabaseUpdate:  "数据库更新失败",
		ErrDatabaseDelete:  "数据库删除失败",
		ErrTransaction:     "事务处理失败",
		ErrDataIntegrity:   "数据完整性错误",
	}

	for code, expectedMsg := range dbErrors {
		err := New(code)
		suite.Equal(expectedMsg, err.Message)
	}
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
