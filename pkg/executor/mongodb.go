package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/sandboxlab/sandbox-core/pkg/sberrors"
)

// MongoDBExecutor implements Executor against a MongoDB document store.
// Queries are written as db.<collection>.<operation>(<args>), parsed by
// parseMongoQuery per spec.md §4.2, and dispatched through execMongoOp.
type MongoDBExecutor struct {
	host     string
	port     int
	database string
	client   *mongo.Client
	db       *mongo.Database
}

func NewMongoDBExecutor(host string, port int, database string) *MongoDBExecutor {
	if database == "" {
		database = "sandbox"
	}
	return &MongoDBExecutor{host: host, port: port, database: database}
}

func (e *MongoDBExecutor) Connect(ctx context.Context) error {
	uri := fmt.Sprintf("mongodb://%s:%d", e.host, e.port)
	opts := options.Client().ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return sberrors.NewConnectionFailed("failed to connect to mongodb", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return sberrors.NewConnectionFailed("failed to connect to mongodb", err)
	}
	e.client = client
	e.db = client.Database(e.database)
	return nil
}

func (e *MongoDBExecutor) Disconnect() {
	if e.client != nil {
		_ = e.client.Disconnect(context.Background())
		e.client = nil
		e.db = nil
	}
}

func (e *MongoDBExecutor) IsConnected(ctx context.Context) bool {
	if e.client == nil {
		return false
	}
	return e.client.Ping(ctx, readpref.Primary()) == nil
}

func (e *MongoDBExecutor) Execute(ctx context.Context, query string, timeout int) (Result, error) {
	if e.db == nil {
		return Result{}, sberrors.NewConnectionFailed("not connected to database", nil)
	}

	parsed, err := parseMongoQuery(query)
	if err != nil {
		return Result{}, sberrors.NewSyntaxError(err.Error())
	}

	qctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	start := time.Now()
	collection := e.db.Collection(parsed.collection)
	rows, _, opErr := execMongoOp(qctx, collection, parsed.operation, parsed.args, timeout)
	elapsed := time.Since(start).Milliseconds()
	if opErr != nil {
		if qctx.Err() == context.DeadlineExceeded {
			return Result{}, sberrors.NewTimeout(fmt.Sprintf("query exceeded %ds timeout", timeout))
		}
		return Failed(opErr.Error()), nil
	}

	out := make([][]interface{}, 0, len(rows))
	for _, doc := range rows {
		encoded, _ := json.Marshal(doc)
		out = append(out, []interface{}{string(encoded)})
	}
	return Ok([]string{"result"}, out, elapsed), nil
}

func (e *MongoDBExecutor) InitSchema(ctx context.Context, schemaSQL string) Result {
	return e.runScript(ctx, schemaSQL, "Schema initialization failed")
}

func (e *MongoDBExecutor) LoadSeed(ctx context.Context, seedSQL string) Result {
	return e.runScript(ctx, seedSQL, "Data loading failed")
}

func (e *MongoDBExecutor) runScript(ctx context.Context, script, failurePrefix string) Result {
	if strings.TrimSpace(script) == "" {
		return Result{Success: true}
	}
	for _, stmt := range splitMongoStatements(script) {
		res, err := e.Execute(ctx, stmt, 30)
		if err != nil {
			return Failed(fmt.Sprintf("%s: %v", failurePrefix, err))
		}
		if !res.Success {
			return Failed(fmt.Sprintf("%s: %s", failurePrefix, res.ErrorMessage))
		}
	}
	return Result{Success: true}
}

func (e *MongoDBExecutor) Reset(ctx context.Context) {
	if e.db == nil {
		return
	}
	names, err := e.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return
	}
	for _, name := range names {
		_ = e.db.Collection(name).Drop(ctx)
	}
}

// splitMongoStatements joins continuation lines and splits on ';' so a
// multi-line insertMany([...]) is preserved as a single statement. A
// plain split on every newline or every ';' would break it.
func splitMongoStatements(text string) []string {
	var statements []string
	var current []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" || strings.HasPrefix(stripped, "//") {
			continue
		}
		current = append(current, stripped)
		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, strings.Join(current, " "))
			current = nil
		}
	}
	if len(current) > 0 {
		statements = append(statements, strings.Join(current, " "))
	}
	return statements
}

type parsedMongoQuery struct {
	collection string
	operation  string
	args       []interface{}
}

var (
	mongoNewDateRe  = regexp.MustCompile(`new\s+Date\(([^)]*)\)`)
	mongoObjectIDRe = regexp.MustCompile(`ObjectId\(([^)]*)\)`)
	mongoNumberRe   = regexp.MustCompile(`(?:NumberInt|NumberLong)\(([^)]*)\)`)
	mongoSingleQ    = regexp.MustCompile(`'([^']*)'`)
	mongoUnquotedK  = regexp.MustCompile(`(^|[,{\s])([$\w]+)\s*:`)
)

// parseMongoQuery parses "db.<collection>.<operation>(<args>)" per
// spec.md §4.2's relaxed-JSON document query format.
func parseMongoQuery(query string) (parsedMongoQuery, error) {
	q := strings.TrimSuffix(strings.TrimSpace(query), ";")
	if !strings.HasPrefix(q, "db.") {
		return parsedMongoQuery{}, fmt.Errorf("invalid query format. Expected: db.collection.operation(...)")
	}
	q = strings.TrimPrefix(q, "db.")

	dot := strings.IndexByte(q, '.')
	if dot < 0 {
		return parsedMongoQuery{}, fmt.Errorf("invalid query format. Expected: db.collection.operation(...)")
	}
	collection := q[:dot]
	rest := q[dot+1:]

	paren := strings.IndexByte(rest, '(')
	if paren < 0 {
		return parsedMongoQuery{}, fmt.Errorf("invalid query format. Missing parentheses")
	}
	operation := rest[:paren]

	closeParen := strings.LastIndexByte(rest, ')')
	if closeParen < 0 {
		return parsedMongoQuery{}, fmt.Errorf("invalid query format. Missing closing parenthesis")
	}
	argsStr := rest[paren+1 : closeParen]

	args, err := parseMongoArgs(argsStr)
	if err != nil {
		return parsedMongoQuery{}, err
	}

	return parsedMongoQuery{collection: collection, operation: operation, args: args}, nil
}

func parseMongoArgs(argsStr string) ([]interface{}, error) {
	argsStr = strings.TrimSpace(argsStr)
	if argsStr == "" {
		return nil, nil
	}

	argsStr = mongoNewDateRe.ReplaceAllString(argsStr, "$1")
	argsStr = mongoObjectIDRe.ReplaceAllString(argsStr, "$1")
	argsStr = mongoNumberRe.ReplaceAllString(argsStr, "$1")

	wrapped := "[" + argsStr + "]"

	var out []interface{}
	if err := json.Unmarshal([]byte(wrapped), &out); err == nil {
		return out, nil
	}

	relaxed := mongoSingleQ.ReplaceAllString(wrapped, `"$1"`)
	relaxed = mongoUnquotedK.ReplaceAllString(relaxed, `$1"$2":`)
	if err := json.Unmarshal([]byte(relaxed), &out); err != nil {
		return nil, fmt.Errorf("failed to parse arguments: %s", argsStr)
	}
	return out, nil
}

func argAt(args []interface{}, i int) interface{} {
	if i < len(args) {
		return args[i]
	}
	return bson.M{}
}

// execMongoOp runs one of the supported operations and returns either a
// list of documents or a single result document (wrapped in a 1-element
// slice), matching spec.md §4.2's supported-operations list.
func execMongoOp(ctx context.Context, coll *mongo.Collection, op string, args []interface{}, timeoutSeconds int) ([]interface{}, bool, error) {
	timeoutMs := int64(timeoutSeconds) * 1000

	switch op {
	case "find":
		cur, err := coll.Find(ctx, argAt(args, 0), options.Find().SetMaxTime(time.Duration(timeoutMs)*time.Millisecond))
		if err != nil {
			return nil, false, err
		}
		defer cur.Close(ctx)
		var docs []bson.M
		if err := cur.All(ctx, &docs); err != nil {
			return nil, false, err
		}
		return toInterfaceSlice(docs), true, nil

	case "findOne":
		var doc bson.M
		err := coll.FindOne(ctx, argAt(args, 0)).Decode(&doc)
		if err == mongo.ErrNoDocuments {
			return []interface{}{bson.M{}}, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return []interface{}{doc}, false, nil

	case "insertOne":
		res, err := coll.InsertOne(ctx, argAt(args, 0))
		if err != nil {
			return nil, false, err
		}
		return []interface{}{bson.M{"insertedId": fmt.Sprintf("%v", res.InsertedID)}}, false, nil

	case "insertMany":
		docs, _ := argAt(args, 0).([]interface{})
		if len(docs) == 0 {
			return nil, false, fmt.Errorf("insertMany requires a non-empty array argument")
		}
		res, err := coll.InsertMany(ctx, docs)
		if err != nil {
			return nil, false, err
		}
		ids := make([]string, 0, len(res.InsertedIDs))
		for _, id := range res.InsertedIDs {
			ids = append(ids, fmt.Sprintf("%v", id))
		}
		return []interface{}{bson.M{"insertedIds": ids}}, false, nil

	case "updateOne":
		res, err := coll.UpdateOne(ctx, argAt(args, 0), argAt(args, 1))
		if err != nil {
			return nil, false, err
		}
		return []interface{}{bson.M{"matchedCount": res.MatchedCount, "modifiedCount": res.ModifiedCount}}, false, nil

	case "updateMany":
		res, err := coll.UpdateMany(ctx, argAt(args, 0), argAt(args, 1))
		if err != nil {
			return nil, false, err
		}
		return []interface{}{bson.M{"matchedCount": res.MatchedCount, "modifiedCount": res.ModifiedCount}}, false, nil

	case "deleteOne":
		res, err := coll.DeleteOne(ctx, argAt(args, 0))
		if err != nil {
			return nil, false, err
		}
		return []interface{}{bson.M{"deletedCount": res.DeletedCount}}, false, nil

	case "deleteMany":
		res, err := coll.DeleteMany(ctx, argAt(args, 0))
		if err != nil {
			return nil, false, err
		}
		return []interface{}{bson.M{"deletedCount": res.DeletedCount}}, false, nil

	case "aggregate":
		pipeline, _ := argAt(args, 0).([]interface{})
		cur, err := coll.Aggregate(ctx, pipeline, options.Aggregate().SetMaxTime(time.Duration(timeoutMs)*time.Millisecond))
		if err != nil {
			return nil, false, err
		}
		defer cur.Close(ctx)
		var docs []bson.M
		if err := cur.All(ctx, &docs); err != nil {
			return nil, false, err
		}
		return toInterfaceSlice(docs), true, nil

	case "countDocuments":
		filter := bson.M{}
		if len(args) > 0 {
			filter, _ = args[0].(map[string]interface{})
		}
		count, err := coll.CountDocuments(ctx, filter, options.Count().SetMaxTime(time.Duration(timeoutMs)*time.Millisecond))
		if err != nil {
			return nil, false, err
		}
		return []interface{}{bson.M{"count": count}}, false, nil

	case "distinct":
		if len(args) == 0 {
			return nil, false, fmt.Errorf("distinct requires a field name")
		}
		field, _ := args[0].(string)
		filter := bson.M{}
		if len(args) > 1 {
			filter, _ = args[1].(map[string]interface{})
		}
		values, err := coll.Distinct(ctx, field, filter)
		if err != nil {
			return nil, false, err
		}
		return values, true, nil

	default:
		return nil, false, fmt.Errorf("unsupported operation: %s", op)
	}
}

func toInterfaceSlice(docs []bson.M) []interface{} {
	out := make([]interface{}, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return out
}
