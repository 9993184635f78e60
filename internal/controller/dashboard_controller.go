package controller

import (
	"errors"
	"interview_pilot_backend/internal/service"
	"interview_pilot_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

// DashboardController 面试官控制台接口
type DashboardController struct {
	Dashboard *service.DashboardService
}

func NewDashboardController(dashboard *service.DashboardService) *DashboardController {
	return &DashboardController{Dashboard: dashboard}
}

// ListCandidates godoc
// @Summary 候选人列表
// @Description 搜索、排序、分页的候选人合并视图（实时阶段 + 归档成绩）
// @Tags 控制台
// @Produce  json
// @Security BearerAuth
// @Param   search query string false "按姓名或邮箱模糊搜索"
// @Param   sortBy query string false "score | date | name，默认 score"
// @Param   order query string false "asc | desc，默认 desc"
// @Param   page query int false "页码，默认 1"
// @Param   limit query int false "每页条数，默认 20"
// @Success 200 {object} util.Response{data=service.CandidateList}
// @Router /api/dashboard/candidates [get]
func (c *DashboardController) ListCandidates(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	list, err := c.Dashboard.ListCandidates(ctx.Request.Context(),
		ctx.Query("search"),
		ctx.DefaultQuery("sortBy", "score"),
		ctx.DefaultQuery("order", "desc"),
		page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// GetCandidate godoc
// @Summary 候选人详情
// @Description 档案加上会话全量快照与最近一次归档
// @Tags 控制台
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "候选人 id"
// @Success 200 {object} util.Response{data=service.CandidateDetail}
// @Failure 404 {object} util.Response
// @Router /api/dashboard/candidates/{id} [get]
func (c *DashboardController) GetCandidate(ctx *gin.Context) {
	detail, err := c.Dashboard.GetCandidateDetail(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrCandidateNotFound) {
			util.NotFound(ctx, err.Error())
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// DeleteCandidate godoc
// @Summary 删除候选人
// @Description 级联删除会话与面试归档
// @Tags 控制台
// @Produce  json
// @Security BearerAuth
// @Param   id path string true "候选人 id"
// @Success 200 {object} util.Response
// @Router /api/dashboard/candidates/{id} [delete]
func (c *DashboardController) DeleteCandidate(ctx *gin.Context) {
	if err := c.Dashboard.DeleteCandidate(ctx.Param("id")); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// WelcomeBack godoc
// @Summary welcome-back 提示
// @Description 最近活跃候选人若有未完成会话则返回其 id
// @Tags 控制台
// @Produce  json
// @Success 200 {object} util.Response{data=object}
// @Router /api/welcome-back [get]
func (c *DashboardController) WelcomeBack(ctx *gin.Context) {
	id, ok := c.Dashboard.WelcomeBack(ctx.Request.Context())
	util.Success(ctx, gin.H{"candidateId": id, "hasUnfinished": ok})
}
