package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/agenda/core/homework"
)

// bindQueryFilter reads a homework.QueryFilter from the query params.
// `upcoming` is on for any truthy value (1, true, on, yes).
func bindQueryFilter(ctx echo.Context) homework.QueryFilter {
	return homework.QueryFilter{
		Upcoming:  isTruthy(ctx.QueryParam("upcoming")),
		StartDate: ctx.QueryParam("start_date"),
		EndDate:   ctx.QueryParam("end_date"),
		Month:     ctx.QueryParam("month"),
	}
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes":
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// paramID reads the positive int64 path param `name`; 0 when it is not one.
func paramID(ctx echo.Context, name string) int64 {
	id, err := strconv.ParseInt(ctx.Param(name), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
