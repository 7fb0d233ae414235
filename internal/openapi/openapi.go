package openapi

func ref(name string) map[string]any {
	return map[string]any{"$ref": "#/components/schemas/" + name}
}

func arrayOf(schema map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": schema}
}

func jsonContent(schema map[string]any) map[string]any {
	return map[string]any{"application/json": map[string]any{"schema": schema}}
}

func str() map[string]any { return map[string]any{"type": "string"} }

func enum(values ...string) map[string]any {
	return map[string]any{"type": "string", "enum": values}
}

func nullable(schema map[string]any) map[string]any {
	out := map[string]any{"nullable": true}
	for k, v := range schema {
		out[k] = v
	}
	return out
}

var (
	roles         = []string{"government", "ngo", "fisherfolk"}
	sensorTypes   = []string{"tide_gauge", "weather_station", "pollution_monitor", "erosion_sensor"}
	alertTypes    = []string{"storm_surge", "cyclone", "erosion", "pollution", "algal_bloom", "all_clear"}
	severities    = []string{"low", "medium", "high", "critical"}
	reportTypes   = []string{"pollution", "erosion", "wildlife", "storm", "other"}
	reportStatus  = []string{"pending", "verified", "resolved", "dismissed"}
	notifyTypes   = []string{"alert", "info", "warning"}
	bearerSecured = []map[string]any{{"bearerAuth": []string{}}}
)

type operation struct {
	tag     string
	summary string
	id      string
	body    string
	status  string
	result  map[string]any
	params  []map[string]any
	public  bool
	extra   map[string]any
}

func (o operation) build() map[string]any {
	status := o.status
	if status == "" {
		status = "200"
	}
	ok := map[string]any{"description": "OK"}
	if o.result != nil {
		ok["content"] = jsonContent(o.result)
	}
	responses := map[string]any{
		status: ok,
		"500":  map[string]any{"description": "Failed", "content": jsonContent(ref("Error"))},
	}
	if !o.public {
		responses["401"] = map[string]any{"description": "Unauthorized", "content": jsonContent(ref("Error"))}
	}
	if o.body != "" {
		responses["400"] = map[string]any{"description": "Invalid input", "content": jsonContent(ref("Error"))}
	}
	for k, v := range o.extra {
		responses[k] = v
	}

	out := map[string]any{
		"tags":        []string{o.tag},
		"summary":     o.summary,
		"operationId": o.id,
		"responses":   responses,
	}
	if !o.public {
		out["security"] = bearerSecured
	}
	if o.body != "" {
		out["requestBody"] = map[string]any{"required": true, "content": jsonContent(ref(o.body))}
	}
	if len(o.params) > 0 {
		out["parameters"] = o.params
	}
	return out
}

func pathID(name string) map[string]any {
	return map[string]any{"name": "id", "in": "path", "required": true, "schema": str(), "description": name + " id"}
}

func query(name, description string) map[string]any {
	return map[string]any{"name": name, "in": "query", "required": false, "schema": str(), "description": description}
}

var notFound = map[string]any{"404": map[string]any{"description": "Not found", "content": jsonContent(ref("Error"))}}

// Spec returns the OpenAPI 3 document for the dashboard API. It is
// hand-maintained alongside the router.
func Spec() map[string]any {
	paths := map[string]map[string]operation{
		"/healthz": {"get": {tag: "system", summary: "Health check", id: "healthz", public: true}},
		"/api/status": {"get": {tag: "system", summary: "Server status and counters", id: "getStatus", public: true,
			result: ref("SystemStatus")}},

		"/api/auth/dev-token": {"post": {tag: "auth", summary: "Mint a session token (dev login only)", id: "devToken",
			body: "DevTokenRequest", public: true, result: ref("DevTokenResponse")}},
		"/api/auth/login": {"post": {tag: "auth", summary: "Refresh the caller's profile from the token", id: "login",
			result: ref("User")}},
		"/api/auth/user": {"get": {tag: "auth", summary: "Current user", id: "getCurrentUser",
			result: ref("User"), extra: notFound}},
		"/api/auth/user/role": {"patch": {tag: "auth", summary: "Change the caller's role", id: "updateRole",
			body: "RoleUpdate", result: ref("User"), extra: notFound}},

		"/api/sensors": {
			"get":  {tag: "sensors", summary: "List sensors", id: "listSensors", result: arrayOf(ref("Sensor"))},
			"post": {tag: "sensors", summary: "Provision a sensor", id: "createSensor", body: "SensorInput", status: "201", result: ref("Sensor")},
		},
		"/api/sensors/{id}/readings": {"get": {tag: "sensors", summary: "Reading history, newest first", id: "listSensorReadings",
			result: arrayOf(ref("SensorReading")), extra: notFound, params: []map[string]any{
				pathID("Sensor"),
				query("from", "inclusive lower bound; RFC 3339 or a date meaning UTC midnight"),
				query("to", "inclusive upper bound; RFC 3339 or a date meaning UTC midnight"),
			}}},
		"/api/sensor-readings": {"post": {tag: "sensors", summary: "Record a reading; publishes sensor-reading", id: "createSensorReading",
			body: "SensorReadingInput", status: "201", result: ref("SensorReading"), extra: notFound}},

		"/api/alerts": {
			"get":  {tag: "alerts", summary: "List alerts", id: "listAlerts", result: arrayOf(ref("Alert"))},
			"post": {tag: "alerts", summary: "Raise an alert; publishes new-alert", id: "createAlert", body: "AlertInput", status: "201", result: ref("Alert")},
		},
		"/api/alerts/active": {"get": {tag: "alerts", summary: "List active alerts", id: "listActiveAlerts", result: arrayOf(ref("Alert"))}},
		"/api/alerts/{id}/resolve": {"patch": {tag: "alerts", summary: "Resolve an alert; publishes alert-resolved", id: "resolveAlert",
			result: ref("Message"), extra: notFound, params: []map[string]any{pathID("Alert")}}},

		"/api/reports": {
			"get":  {tag: "reports", summary: "List reports", id: "listReports", result: arrayOf(ref("Report"))},
			"post": {tag: "reports", summary: "Submit a report; publishes new-report", id: "createReport", body: "ReportInput", status: "201", result: ref("Report")},
		},
		"/api/reports/mine": {"get": {tag: "reports", summary: "Reports owned by the caller", id: "listMyReports", result: arrayOf(ref("Report"))}},
		"/api/reports/{id}/status": {"patch": {tag: "reports", summary: "Moderate a report", id: "updateReportStatus",
			body: "ReportStatusUpdate", result: ref("Report"), extra: notFound, params: []map[string]any{pathID("Report")}}},

		"/api/analytics/stats": {"get": {tag: "analytics", summary: "Dashboard counters", id: "getStats", result: ref("Stats")}},
		"/api/analytics/water-level-trends": {"get": {tag: "analytics", summary: "Water level chart", id: "getWaterLevelTrends", result: ref("Series")}},
		"/api/analytics/threat-distribution": {"get": {tag: "analytics", summary: "Threat distribution chart", id: "getThreatDistribution", result: ref("Series")}},
		"/api/analytics/activity": {"get": {tag: "analytics", summary: "Event and reading activity from Redis", id: "getActivity",
			result: ref("Activity"), params: []map[string]any{query("days", "trailing window, 1-90 (default 7)")}}},

		"/api/notifications": {"get": {tag: "notifications", summary: "Caller's notifications", id: "listNotifications", result: arrayOf(ref("Notification"))}},
		"/api/notifications/{id}/read": {"patch": {tag: "notifications", summary: "Mark a notification read", id: "markNotificationRead",
			result: ref("Message"), extra: notFound, params: []map[string]any{pathID("Notification")}}},

		"/api/ws": {"get": {tag: "realtime", summary: "Realtime event socket (websocket upgrade)", id: "realtime",
			params: []map[string]any{query("token", "session token when the Authorization header cannot be set")},
			extra:  map[string]any{"101": map[string]any{"description": "Switching protocols"}}}},
	}

	builtPaths := make(map[string]any, len(paths))
	for path, ops := range paths {
		item := make(map[string]any, len(ops))
		for method, op := range ops {
			item[method] = op.build()
		}
		builtPaths[path] = item
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "coastwatch API",
			"version": "0.1.0",
		},
		"paths": builtPaths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"bearerAuth": map[string]any{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
			"schemas": schemas(),
		},
	}
}

func schemas() map[string]any {
	dateTime := map[string]any{"type": "string", "format": "date-time"}
	object := func(props map[string]any, required ...string) map[string]any {
		out := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			out["required"] = required
		}
		return out
	}

	return map[string]any{
		"Error": object(map[string]any{
			"message": str(),
			"errors": arrayOf(object(map[string]any{
				"field":   str(),
				"message": str(),
			}, "field", "message")),
		}, "message"),
		"Message": object(map[string]any{"message": str()}, "message"),
		"SystemStatus": object(map[string]any{
			"status":    enum("running", "maintenance"),
			"version":   str(),
			"backend":   enum("memory", "postgres"),
			"dev_login": map[string]any{"type": "boolean"},
			"realtime": object(map[string]any{
				"clients": map[string]any{"type": "integer"},
				"rooms":   map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "integer"}},
			}),
			"stats": map[string]any{"type": "object", "additionalProperties": true},
		}, "status", "backend"),
		"DevTokenRequest": object(map[string]any{
			"sub":       str(),
			"email":     map[string]any{"type": "string", "format": "email"},
			"firstName": str(),
			"lastName":  str(),
			"role":      enum(roles...),
		}, "sub"),
		"DevTokenResponse": object(map[string]any{"token": str(), "user": ref("User")}, "token", "user"),
		"RoleUpdate":       object(map[string]any{"role": enum(roles...)}, "role"),
		"User": object(map[string]any{
			"id":              str(),
			"email":           nullable(str()),
			"firstName":       str(),
			"lastName":        str(),
			"profileImageUrl": str(),
			"role":            enum(roles...),
			"createdAt":       dateTime,
			"updatedAt":       dateTime,
		}, "id", "role"),
		"Sensor": object(map[string]any{
			"id":          str(),
			"name":        str(),
			"type":        enum(sensorTypes...),
			"latitude":    str(),
			"longitude":   str(),
			"isActive":    map[string]any{"type": "boolean"},
			"lastValue":   nullable(map[string]any{"type": "number"}),
			"lastReading": nullable(dateTime),
			"createdAt":   dateTime,
		}, "id", "name", "type", "latitude", "longitude", "isActive"),
		"SensorInput": object(map[string]any{
			"name":      str(),
			"type":      enum(sensorTypes...),
			"latitude":  str(),
			"longitude": str(),
			"isActive":  map[string]any{"type": "boolean"},
		}, "name", "type", "latitude", "longitude"),
		"SensorReading": object(map[string]any{
			"id":        str(),
			"sensorId":  str(),
			"value":     map[string]any{"type": "number"},
			"unit":      str(),
			"timestamp": dateTime,
		}, "id", "sensorId", "value", "unit", "timestamp"),
		"SensorReadingInput": object(map[string]any{
			"sensorId": str(),
			"value":    map[string]any{"oneOf": []any{map[string]any{"type": "number"}, str()}},
			"unit":     str(),
		}, "sensorId", "value", "unit"),
		"Alert": object(map[string]any{
			"id":          str(),
			"type":        enum(alertTypes...),
			"severity":    enum(severities...),
			"title":       str(),
			"description": str(),
			"location":    str(),
			"latitude":    nullable(str()),
			"longitude":   nullable(str()),
			"isActive":    map[string]any{"type": "boolean"},
			"createdAt":   dateTime,
			"resolvedAt":  nullable(dateTime),
		}, "id", "type", "severity", "title", "location", "isActive", "createdAt"),
		"AlertInput": object(map[string]any{
			"type":        enum(alertTypes...),
			"severity":    enum(severities...),
			"title":       str(),
			"description": str(),
			"location":    str(),
			"latitude":    str(),
			"longitude":   str(),
		}, "type", "severity", "title", "location"),
		"Report": object(map[string]any{
			"id":          str(),
			"userId":      str(),
			"type":        enum(reportTypes...),
			"title":       str(),
			"description": str(),
			"location":    str(),
			"latitude":    nullable(str()),
			"longitude":   nullable(str()),
			"imageUrl":    nullable(str()),
			"status":      enum(reportStatus...),
			"createdAt":   dateTime,
			"updatedAt":   dateTime,
		}, "id", "userId", "type", "title", "description", "location", "status"),
		"ReportInput": object(map[string]any{
			"type":        enum(reportTypes...),
			"title":       str(),
			"description": str(),
			"location":    str(),
			"latitude":    str(),
			"longitude":   str(),
			"imageUrl":    map[string]any{"type": "string", "format": "uri"},
		}, "type", "title", "description", "location"),
		"ReportStatusUpdate": object(map[string]any{"status": enum(reportStatus...)}, "status"),
		"Notification": object(map[string]any{
			"id":        str(),
			"userId":    str(),
			"alertId":   nullable(str()),
			"title":     str(),
			"message":   str(),
			"type":      enum(notifyTypes...),
			"isRead":    map[string]any{"type": "boolean"},
			"createdAt": dateTime,
		}, "id", "userId", "title", "message", "type", "isRead"),
		"Stats": object(map[string]any{
			"activeAlerts":  map[string]any{"type": "integer"},
			"sensorsOnline": map[string]any{"type": "integer"},
			"totalReports":  map[string]any{"type": "integer"},
		}, "activeAlerts", "sensorsOnline", "totalReports"),
		"Series": object(map[string]any{
			"labels": arrayOf(str()),
			"values": arrayOf(map[string]any{"type": "number"}),
		}, "labels", "values"),
		"Activity": object(map[string]any{
			"enabled":       map[string]any{"type": "boolean"},
			"date":          str(),
			"events":        map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "integer"}},
			"totals":        map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "integer"}},
			"readings":      map[string]any{"type": "integer"},
			"activeSensors": map[string]any{"type": "integer"},
			"activeSensorSeries": arrayOf(object(map[string]any{
				"bucket": str(),
				"active": map[string]any{"type": "integer"},
			})),
			"topSensors": arrayOf(object(map[string]any{
				"key":   str(),
				"count": map[string]any{"type": "integer"},
			})),
		}, "enabled", "date", "events"),
	}
}
